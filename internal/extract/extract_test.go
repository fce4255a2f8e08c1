package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-report/internal/browser"
	"github.com/maltedev/listing-report/internal/models"
)

func listConfig() models.SiteConfig {
	return models.SiteConfig{
		SourceID: "A",
		EntryURL: "http://x",
		List: models.ListSelectors{
			Container: ".item",
			Title:     ".t",
			Price:     ".p",
		},
	}
}

func TestListSentinelOnMiss(t *testing.T) {
	snap := browser.Snapshot{
		URL: "http://x",
		HTML: `<html><body>
			<div class="item"><span class="t">Widget</span><span class="p">$10</span></div>
			<div class="item"><span class="t">Gadget</span><span class="p"></span></div>
		</body></html>`,
	}

	records, err := List(snap, listConfig())
	require.NoError(t, err)

	assert.Equal(t, []models.Record{
		{Title: "Widget", Price: "$10"},
		{Title: "Gadget", Price: "-"},
	}, records)
}

func TestListFieldRules(t *testing.T) {
	tests := []struct {
		name      string
		container string
		title     string
		price     string
	}{
		{"Missing element", `<div class="item"><span class="p">1</span></div>`, "-", "1"},
		{"Whitespace only", `<div class="item"><span class="t">   </span><span class="p">
			2 </span></div>`, "-", "2"},
		{"Trimmed text", `<div class="item"><h2 class="t">
			  Phone X  </h2><b class="p">€ 99</b></div>`, "Phone X", "€ 99"},
		{"Nested text", `<div class="item"><div class="t"><a>Big</a> <i>Phone</i></div><div class="p">5</div></div>`, "Big Phone", "5"},
		{"First match wins", `<div class="item"><p class="t">one</p><p class="t">two</p><p class="p">3</p></div>`, "one", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := List(browser.Snapshot{URL: "http://x", HTML: tt.container}, listConfig())
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.title, records[0].Title)
			assert.Equal(t, tt.price, records[0].Price)
		})
	}
}

func TestListDocumentOrderAndCount(t *testing.T) {
	html := `<ul>
		<li class="item"><span class="t">1</span></li>
		<li class="other"><span class="t">skip</span></li>
		<li class="item"><span class="t">2</span></li>
		<li><div class="item"><span class="t">3</span></div></li>
	</ul>`

	records, err := List(browser.Snapshot{URL: "http://x", HTML: html}, listConfig())
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, records[i].Title)
		assert.Equal(t, models.Sentinel, records[i].Price)
		assert.Empty(t, records[i].DetailURL)
	}
}

func TestListNoContainers(t *testing.T) {
	records, err := List(browser.Snapshot{URL: "http://x", HTML: "<p>nothing</p>"}, listConfig())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListDetailLinks(t *testing.T) {
	cfg := listConfig()
	cfg.DetailLinkSelector = "a.more"

	html := `
		<div class="item"><span class="t">rel</span><a class="more" href="/p/1">more</a></div>
		<div class="item"><span class="t">abs</span><a class="more" href="https://shop.example/p/2">more</a></div>
		<div class="item"><span class="t">none</span></div>
		<div class="item"><span class="t">empty</span><a class="more" href="">more</a></div>
		<div class="item"><span class="t">noattr</span><a class="more">more</a></div>
		<div class="item"><span class="t">sibling</span><a class="more" href="p/3?x=1">more</a></div>`

	records, err := List(browser.Snapshot{URL: "http://x.example/list/index.html", HTML: html}, cfg)
	require.NoError(t, err)
	require.Len(t, records, 6)

	assert.Equal(t, "http://x.example/p/1", records[0].DetailURL)
	assert.Equal(t, "https://shop.example/p/2", records[1].DetailURL)
	assert.Equal(t, models.Sentinel, records[2].DetailURL)
	assert.Equal(t, models.Sentinel, records[3].DetailURL)
	assert.Equal(t, models.Sentinel, records[4].DetailURL)
	assert.Equal(t, "http://x.example/list/p/3?x=1", records[5].DetailURL)
}

func TestListHonoursBaseElement(t *testing.T) {
	cfg := listConfig()
	cfg.DetailLinkSelector = "a"

	html := `<html><head><base href="https://cdn.example/shop/"></head><body>
		<div class="item"><a href="phone-1">p</a></div></body></html>`

	records, err := List(browser.Snapshot{URL: "http://x/", HTML: html}, cfg)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://cdn.example/shop/phone-1", records[0].DetailURL)
}

func TestListInvalidSelector(t *testing.T) {
	cfg := listConfig()
	cfg.List.Title = "div[["

	_, err := List(browser.Snapshot{URL: "http://x", HTML: "<div></div>"}, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestDetailOrdinalRule(t *testing.T) {
	html := `<table>
		<tr><td>Brand</td><td>Acme</td></tr>
		<tr><td>Display</td><td> 6.1 inch </td></tr>
	</table>`
	snap := browser.Snapshot{URL: "http://x/p/1", HTML: html}

	cfg := listConfig()
	cfg.DetailLinkSelector = "a"

	value, err := Detail(snap, cfg)
	require.NoError(t, err)
	assert.Equal(t, "6.1 inch", value)

	zero := 0
	cfg.DetailFieldOrdinal = &zero
	value, err = Detail(snap, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Brand", value)

	far := 10
	cfg.DetailFieldOrdinal = &far
	value, err = Detail(snap, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.Sentinel, value)

	negative := -1
	cfg.DetailFieldOrdinal = &negative
	value, err = Detail(snap, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.Sentinel, value)
}

func TestDetailCustomCellSelector(t *testing.T) {
	cfg := listConfig()
	one := 1
	cfg.DetailCellSelector = "dl.specs dd"
	cfg.DetailFieldOrdinal = &one

	html := `<dl class="specs"><dt>CPU</dt><dd>M3</dd><dt>Screen</dt><dd>14"</dd></dl>`
	value, err := Detail(browser.Snapshot{HTML: html}, cfg)
	require.NoError(t, err)
	assert.Equal(t, `14"`, value)
}

func TestDetailSelectorRule(t *testing.T) {
	cfg := listConfig()
	cfg.DetailFieldSelector = "#screen .value"

	value, err := Detail(browser.Snapshot{HTML: `<div id="screen"><span class="value">15.6"</span></div>`}, cfg)
	require.NoError(t, err)
	assert.Equal(t, `15.6"`, value)

	value, err = Detail(browser.Snapshot{HTML: `<div id="other"></div>`}, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.Sentinel, value)
}

func TestDetailEmptyCell(t *testing.T) {
	cfg := listConfig()
	html := `<table><tr><td>a</td><td>b</td><td>c</td><td>   </td></tr></table>`

	value, err := Detail(browser.Snapshot{HTML: html}, cfg)
	require.NoError(t, err)
	assert.Equal(t, models.Sentinel, value)
}

func TestValidate(t *testing.T) {
	cfg := listConfig()
	assert.NoError(t, Validate(cfg))

	cfg.DetailLinkSelector = "a.more"
	assert.NoError(t, Validate(cfg))

	cfg.DetailFieldSelector = ":nth-child(("
	assert.ErrorIs(t, Validate(cfg), ErrInvalidSelector)

	cfg = listConfig()
	cfg.List.Container = "  "
	assert.ErrorIs(t, Validate(cfg), ErrInvalidSelector)
}

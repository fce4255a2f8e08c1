package sites

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-report/internal/models"
)

func validSite(id string) models.SiteConfig {
	return models.SiteConfig{
		SourceID: id,
		EntryURL: "https://shop.test/list",
		List:     models.ListSelectors{Container: ".item", Title: ".t", Price: ".p"},
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultRegistries(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"notebooks", "phones"}, r.Names())

	phones, err := r.Get("phones")
	require.NoError(t, err)
	require.NotEmpty(t, phones)
	for _, cfg := range phones {
		assert.False(t, cfg.HasDetail(), "%s should be list-only", cfg.SourceID)
	}

	notebooks, err := r.Get("notebooks")
	require.NoError(t, err)
	require.NotEmpty(t, notebooks)
	for _, cfg := range notebooks {
		assert.True(t, cfg.HasDetail(), "%s should be enriched", cfg.SourceID)
		assert.Equal(t, "screenSize", cfg.FieldName())
		assert.Equal(t, models.DefaultDetailOrdinal, cfg.Ordinal())
	}
}

func TestGetUnknownRegistry(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	_, err = r.Get("tablets")
	assert.ErrorIs(t, err, ErrRegistryNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	first, err := r.Get("phones")
	require.NoError(t, err)
	first[0].SourceID = "changed"

	second, err := r.Get("phones")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", second[0].SourceID)
}

func TestLoadOverlay(t *testing.T) {
	path := writeFile(t, `
registries:
  phones:
    - source_id: Local
      entry_url: http://localhost:9000/list
      list: {container: ".row", title: "h2", price: "b"}
  tablets:
    - source_id: Tabs
      entry_url: https://tabs.test/
      list: {container: ".row", title: "h2", price: "b"}
      detail_link_selector: a
      detail_field_selector: ".size"
`)

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"notebooks", "phones", "tablets"}, r.Names())

	phones, err := r.Get("phones")
	require.NoError(t, err)
	require.Len(t, phones, 1)
	assert.Equal(t, "Local", phones[0].SourceID)

	tablets, err := r.Get("tablets")
	require.NoError(t, err)
	assert.Equal(t, ".size", tablets[0].DetailFieldSelector)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "registries:\n  x:\n    - source_id: A\n      unknown_key: 1\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, `
registries:
  broken:
    - source_id: "bad:name"
      entry_url: https://shop.test
      list: {container: ".a", title: ".b", price: ".c"}
`))
	assert.ErrorIs(t, err, ErrInvalidSite)
}

func TestValidateSites(t *testing.T) {
	ordinal := -1

	tests := []struct {
		name    string
		mutate  func(*models.SiteConfig)
		wantErr string
	}{
		{"valid", func(c *models.SiteConfig) {}, ""},
		{"empty id", func(c *models.SiteConfig) { c.SourceID = " " }, "source_id is required"},
		{"long id", func(c *models.SiteConfig) { c.SourceID = strings.Repeat("x", 32) }, "longer than 31"},
		{"forbidden char", func(c *models.SiteConfig) { c.SourceID = "a/b" }, "contains one of"},
		{"apostrophe", func(c *models.SiteConfig) { c.SourceID = "'quoted'" }, "apostrophe"},
		{"relative url", func(c *models.SiteConfig) { c.EntryURL = "/list" }, "absolute http(s)"},
		{"ftp url", func(c *models.SiteConfig) { c.EntryURL = "ftp://shop.test/" }, "absolute http(s)"},
		{"empty selector", func(c *models.SiteConfig) { c.List.Price = "" }, "empty selector"},
		{"bad selector", func(c *models.SiteConfig) { c.List.Title = "h2[" }, "invalid selector"},
		{"negative ordinal", func(c *models.SiteConfig) { c.DetailFieldOrdinal = &ordinal }, "must not be negative"},
		{"bad detail selector", func(c *models.SiteConfig) {
			c.DetailLinkSelector = "a"
			c.DetailCellSelector = "td["
		}, "invalid selector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSite("Shop")
			tt.mutate(&cfg)

			err := ValidateSites([]models.SiteConfig{cfg})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSite)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSitesDuplicates(t *testing.T) {
	err := ValidateSites([]models.SiteConfig{validSite("Shop"), validSite("shop")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source id")

	assert.ErrorIs(t, ValidateSites(nil), ErrInvalidSite)
}

func TestNew(t *testing.T) {
	r, err := New(map[string][]models.SiteConfig{"local": {validSite("Shop")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, r.Names())

	_, err = New(map[string][]models.SiteConfig{"empty": nil})
	assert.ErrorIs(t, err, ErrInvalidSite)
}

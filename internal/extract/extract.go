// Package extract turns a rendered DOM snapshot and a site's selectors into
// records. It never talks to the browser, so every rule here is a pure
// function of (snapshot, config).
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/maltedev/listing-report/internal/browser"
	"github.com/maltedev/listing-report/internal/models"
)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrParseDocument   = errors.New("failed to parse document")
)

// List returns one record per container match, in document order. Title and
// price fall back to models.Sentinel; when the site enables the detail pass
// each record also carries its absolute detail URL or the sentinel.
func List(snap browser.Snapshot, cfg models.SiteConfig) ([]models.Record, error) {
	container, err := compile(cfg.List.Container)
	if err != nil {
		return nil, err
	}
	title, err := compile(cfg.List.Title)
	if err != nil {
		return nil, err
	}
	price, err := compile(cfg.List.Price)
	if err != nil {
		return nil, err
	}

	var link cascadia.Selector
	if cfg.HasDetail() {
		if link, err = compile(cfg.DetailLinkSelector); err != nil {
			return nil, err
		}
	}

	doc, err := parse(snap)
	if err != nil {
		return nil, err
	}
	base := baseURL(doc, snap.URL)

	items := doc.FindMatcher(container)
	records := make([]models.Record, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		record := models.Record{
			Title: text(item.FindMatcher(title).First()),
			Price: text(item.FindMatcher(price).First()),
		}
		if link != nil {
			record.DetailURL = href(item.FindMatcher(link).First(), base)
		}
		records = append(records, record)
	})

	return records, nil
}

// Detail extracts the single detail field from a detail page. A configured
// DetailFieldSelector wins; otherwise the Ordinal()-th match of
// CellSelector() is used.
func Detail(snap browser.Snapshot, cfg models.SiteConfig) (string, error) {
	if cfg.DetailFieldSelector != "" {
		field, err := compile(cfg.DetailFieldSelector)
		if err != nil {
			return "", err
		}
		doc, err := parse(snap)
		if err != nil {
			return "", err
		}
		return text(doc.FindMatcher(field).First()), nil
	}

	cell, err := compile(cfg.CellSelector())
	if err != nil {
		return "", err
	}
	doc, err := parse(snap)
	if err != nil {
		return "", err
	}

	cells := doc.FindMatcher(cell)
	ordinal := cfg.Ordinal()
	if ordinal < 0 || ordinal >= cells.Length() {
		return models.Sentinel, nil
	}
	return text(cells.Eq(ordinal)), nil
}

// Validate compiles every selector the site uses.
func Validate(cfg models.SiteConfig) error {
	selectors := []string{cfg.List.Container, cfg.List.Title, cfg.List.Price}
	if cfg.HasDetail() {
		selectors = append(selectors, cfg.DetailLinkSelector)
		if cfg.DetailFieldSelector != "" {
			selectors = append(selectors, cfg.DetailFieldSelector)
		} else {
			selectors = append(selectors, cfg.CellSelector())
		}
	}

	for _, s := range selectors {
		if _, err := compile(s); err != nil {
			return err
		}
	}
	return nil
}

func compile(selector string) (cascadia.Selector, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
	}
	return sel, nil
}

func parse(snap browser.Snapshot) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseDocument, err)
	}
	return doc, nil
}

func text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return models.Sentinel
	}
	if v := strings.TrimSpace(s.Text()); v != "" {
		return v
	}
	return models.Sentinel
}

// href resolves the element's href against base the way the DOM href
// property does.
func href(s *goquery.Selection, base *url.URL) string {
	raw, ok := s.Attr("href")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return models.Sentinel
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return models.Sentinel
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return models.Sentinel
	}
	return ref.String()
}

// baseURL honours a <base href> element before falling back to the page URL.
func baseURL(doc *goquery.Document, pageURL string) *url.URL {
	page, err := url.Parse(pageURL)
	if err != nil {
		page = nil
	}

	if raw, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(raw)); err == nil {
			if page != nil {
				return page.ResolveReference(ref)
			}
			if ref.IsAbs() {
				return ref
			}
		}
	}

	return page
}

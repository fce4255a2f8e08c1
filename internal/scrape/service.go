// Package scrape drives a browser across configured sites and aggregates the
// extracted records.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maltedev/listing-report/internal/browser"
	"github.com/maltedev/listing-report/internal/extract"
	"github.com/maltedev/listing-report/internal/metrics"
	"github.com/maltedev/listing-report/internal/models"
	"github.com/maltedev/listing-report/internal/report"
)

type Options struct {
	// NavigationTimeout bounds every goto and back navigation.
	NavigationTimeout time.Duration
	// Concurrency is the number of sources scraped at once. Values below 2
	// scrape sources one after another.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		NavigationTimeout: 30 * time.Second,
		Concurrency:       1,
	}
}

type Service struct {
	driver  browser.Driver
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    Options
}

func NewService(driver browser.Driver, logger *slog.Logger, m *metrics.Metrics, opts Options) *Service {
	return &Service{
		driver:  driver,
		logger:  logger.With("component", "scraper"),
		metrics: m,
		opts:    opts,
	}
}

// Result is a rendered workbook together with the counts it was built from.
type Result struct {
	Workbook []byte
	Sources  int
	Records  int
}

// RunScrape aggregates every site and renders the workbook. It returns no
// bytes at all when any source fails.
func (s *Service) RunScrape(ctx context.Context, cfgs []models.SiteConfig) ([]byte, error) {
	res, err := s.BuildReport(ctx, cfgs)
	if err != nil {
		return nil, err
	}
	return res.Workbook, nil
}

// BuildReport is RunScrape with the record counts kept for bookkeeping.
func (s *Service) BuildReport(ctx context.Context, cfgs []models.SiteConfig) (*Result, error) {
	rs, err := s.Aggregate(ctx, cfgs)
	if err != nil {
		return nil, err
	}
	data, err := report.Build(rs)
	if err != nil {
		return nil, err
	}
	return &Result{Workbook: data, Sources: rs.Len(), Records: rs.RecordCount()}, nil
}

// Aggregate scrapes every site and keys the records by source id in
// registry order. The first failing source aborts the run.
func (s *Service) Aggregate(ctx context.Context, cfgs []models.SiteConfig) (*models.ResultSet, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoSources
	}

	// Sheet names are case-insensitive, so source ids are too.
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		key := strings.ToLower(cfg.SourceID)
		if seen[key] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSource, cfg.SourceID)
		}
		seen[key] = true
	}

	results := make([][]models.Record, len(cfgs))

	if s.opts.Concurrency < 2 {
		for i, cfg := range cfgs {
			records, err := s.ScrapeSource(ctx, cfg)
			if err != nil {
				return nil, s.abort(cfg.SourceID, err)
			}
			results[i] = records
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Concurrency)

		for i, cfg := range cfgs {
			i, cfg := i, cfg
			g.Go(func() error {
				records, err := s.ScrapeSource(gctx, cfg)
				if err != nil {
					// Siblings stopped by another source's failure are not
					// failures of their own.
					if ctx.Err() == nil && gctx.Err() != nil && errors.Is(err, context.Canceled) {
						return &AggregationError{SourceID: cfg.SourceID, Err: err}
					}
					return s.abort(cfg.SourceID, err)
				}
				results[i] = records
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	rs := models.NewResultSet()
	for i, cfg := range cfgs {
		rs.Put(cfg.SourceID, cfg.FieldName(), results[i])
	}
	return rs, nil
}

func (s *Service) abort(sourceID string, err error) error {
	kind := Kind(err)
	s.metrics.IncError(kind)
	s.logger.Error("source failed, aborting run", "source", sourceID, "kind", kind, "error", err)
	return &AggregationError{SourceID: sourceID, Err: err}
}

// ScrapeSource owns one browsing context for the whole source: list scrape,
// then the detail pass when configured. The context is closed on every path.
func (s *Service) ScrapeSource(ctx context.Context, cfg models.SiteConfig) ([]models.Record, error) {
	start := time.Now()
	logger := s.logger.With("source", cfg.SourceID)
	logger.Info("scraping source", "url", cfg.EntryURL, "detail", cfg.HasDetail())

	bctx, err := s.driver.OpenContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browsing context: %w", err)
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			logger.Warn("failed to close browsing context", "error", err)
		}
	}()

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	records, err := s.ScrapeList(ctx, page, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.HasDetail() {
		records, err = s.Enrich(ctx, page, cfg, records)
		if err != nil {
			return nil, err
		}
	}

	for i := range records {
		records[i].DetailURL = ""
	}

	s.metrics.AddRecords(cfg.SourceID, len(records))
	s.metrics.ObserveSource(cfg.SourceID, time.Since(start))
	logger.Info("source scraped", "records", len(records), "duration", time.Since(start))

	return records, nil
}

// ScrapeList navigates page to the site's entry URL and extracts its records.
func (s *Service) ScrapeList(ctx context.Context, page browser.Page, cfg models.SiteConfig) ([]models.Record, error) {
	if err := s.navigate(ctx, OpGoto, cfg.EntryURL, func(ctx context.Context) error {
		return page.Goto(ctx, cfg.EntryURL)
	}); err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, page, cfg.EntryURL)
	if err != nil {
		return nil, err
	}

	records, err := extract.List(snap, cfg)
	if err != nil {
		return nil, &EvaluationError{URL: snap.URL, Err: err}
	}

	return records, nil
}

// Enrich visits the detail page of every record with a usable detail URL,
// on the same page, returning to the list page after each visit. Records
// keep their count and order; the input slice is left untouched.
func (s *Service) Enrich(ctx context.Context, page browser.Page, cfg models.SiteConfig, records []models.Record) ([]models.Record, error) {
	out := make([]models.Record, len(records))

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if record.HasDetailURL() {
			value, err := s.visitDetail(ctx, page, cfg, record.DetailURL)
			if err != nil {
				return nil, err
			}
			record.DetailField = value
			record.HasDetailField = true
		}

		out[i] = record
	}

	return out, nil
}

func (s *Service) visitDetail(ctx context.Context, page browser.Page, cfg models.SiteConfig, detailURL string) (string, error) {
	s.logger.Debug("visiting detail page", "source", cfg.SourceID, "url", detailURL)

	if err := s.navigate(ctx, OpGoto, detailURL, func(ctx context.Context) error {
		return page.Goto(ctx, detailURL)
	}); err != nil {
		return "", err
	}

	snap, err := s.snapshot(ctx, page, detailURL)
	if err != nil {
		return "", err
	}

	value, err := extract.Detail(snap, cfg)
	if err != nil {
		return "", &EvaluationError{URL: snap.URL, Err: err}
	}

	if err := s.navigate(ctx, OpBack, detailURL, page.GoBack); err != nil {
		return "", err
	}

	return value, nil
}

func (s *Service) navigate(ctx context.Context, op, url string, fn func(context.Context) error) error {
	if op == OpGoto {
		if guard := guardFrom(ctx); guard != nil {
			if err := guard(ctx, url); err != nil {
				return &NavigationError{Op: op, URL: url, Err: fmt.Errorf("%w: %v", ErrBlockedURL, err)}
			}
		}
	}

	navCtx, cancel := s.navigationContext(ctx)
	defer cancel()

	s.metrics.IncNavigation(op)
	if err := fn(navCtx); err != nil {
		return &NavigationError{Op: op, URL: url, Err: err}
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context, page browser.Page, url string) (browser.Snapshot, error) {
	navCtx, cancel := s.navigationContext(ctx)
	defer cancel()

	snap, err := page.Snapshot(navCtx)
	if err != nil {
		return browser.Snapshot{}, &EvaluationError{URL: url, Err: fmt.Errorf("failed to read page content: %w", err)}
	}
	if snap.URL == "" {
		snap.URL = url
	}
	return snap, nil
}

func (s *Service) navigationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.NavigationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.NavigationTimeout)
}

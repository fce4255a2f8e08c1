package runs

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/listing-report/internal/metrics"
	"github.com/maltedev/listing-report/internal/models"
	"github.com/maltedev/listing-report/internal/scrape"
)

// Reporter scrapes a list of sites and renders the workbook.
type Reporter interface {
	BuildReport(ctx context.Context, cfgs []models.SiteConfig) (*scrape.Result, error)
}

// Notifier is told about every finished run.
type Notifier interface {
	RunFinished(ctx context.Context, run *Run) error
}

// Runner executes one aggregation run: it records the run, bounds it by the
// run timeout, renders the report and notifies listeners.
type Runner struct {
	scraper  Reporter
	store    Recorder
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
}

// NewRunner accepts a nil store or notifier.
func NewRunner(scraper Reporter, store Recorder, notifier Notifier, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) *Runner {
	if store == nil {
		store = NopStore{}
	}
	return &Runner{
		scraper:  scraper,
		store:    store,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "runner"),
		timeout:  timeout,
	}
}

// Run scrapes cfgs and returns the workbook bytes. On failure no bytes are
// returned; the Run is returned in both cases.
func (r *Runner) Run(ctx context.Context, registry string, cfgs []models.SiteConfig) ([]byte, *Run, error) {
	run := NewRun(registry, len(cfgs))
	logger := r.logger.With("run_id", run.ID, "registry", registry)

	if err := r.store.Start(ctx, run); err != nil {
		logger.Error("failed to record run start", "error", err)
	}
	logger.Info("run started", "sources", len(cfgs))

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.scraper.BuildReport(runCtx, cfgs)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		run.ErrorKind = scrape.Kind(err)
		run.FailedSource = scrape.FailedSource(err)
		logger.Error("run failed", "kind", run.ErrorKind, "source", run.FailedSource, "error", err)
	} else {
		run.Status = StatusCompleted
		run.Records = res.Records
		logger.Info("run completed", "records", res.Records, "duration", run.Duration())
	}
	r.metrics.IncRun(string(run.Status))

	// Bookkeeping outlives a canceled caller.
	bookCtx := context.WithoutCancel(ctx)
	if err := r.store.Finish(bookCtx, run); err != nil {
		logger.Error("failed to record run result", "error", err)
	}
	if r.notifier != nil {
		if err := r.notifier.RunFinished(bookCtx, run); err != nil {
			logger.Error("failed to publish run event", "error", err)
		}
	}

	if err != nil {
		return nil, run, err
	}
	return res.Workbook, run, nil
}

package browser

import (
	"context"
	"fmt"
	"time"
)

// Engines accepted by Open.
const (
	EnginePlaywright = "playwright"
	EngineRod        = "rod"
)

// Snapshot is the serialized DOM of a page together with the URL it was
// rendered from. Relative links are resolved against URL.
type Snapshot struct {
	URL  string
	HTML string
}

// Driver launches isolated browsing contexts on one running browser.
type Driver interface {
	OpenContext(ctx context.Context) (Context, error)
	Close() error
}

// Context is an isolated browser session. Closing it closes its pages.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single navigation cursor. Calls block until the navigation has
// settled or ctx is done.
type Page interface {
	Goto(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	Snapshot(ctx context.Context) (Snapshot, error)
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	BrowserBin     string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "UTC",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		},
	}
}

// Open starts the browser engine named by engine.
func Open(engine string, opts *Options) (Driver, error) {
	switch engine {
	case "", EnginePlaywright:
		return NewPlaywright(opts)
	case EngineRod:
		return NewRod(opts)
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}

// timeoutFor returns the smaller of fallback and the time left on ctx.
func timeoutFor(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return time.Millisecond
	}
	if fallback <= 0 || remaining < fallback {
		return remaining
	}
	return fallback
}

// millis converts d to whole milliseconds for driver APIs that read 0 as
// "no timeout". Positive durations never round down to 0.
func millis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return float64(ms)
}

// await runs fn and returns early with ctx.Err() when ctx is done first.
// fn keeps running in the background until the driver call returns; closing
// the owning context aborts it.
func await(ctx context.Context, fn func() error) error {
	_, err := awaitValue(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func awaitValue[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.val, r.err
	}
}

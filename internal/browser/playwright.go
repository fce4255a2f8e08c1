package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightDriver runs one Chromium instance and hands out a fresh
// BrowserContext per OpenContext call.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

func NewPlaywright(opts *Options) (*PlaywrightDriver, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}
	if opts.BrowserBin != "" {
		launchOpts.ExecutablePath = &opts.BrowserBin
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &PlaywrightDriver{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  slog.Default().With("component", "browser", "engine", EnginePlaywright),
	}, nil
}

func (d *PlaywrightDriver) OpenContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		ExtraHttpHeaders:  d.headers(),
		Viewport: &playwright.Size{
			Width:  d.opts.ViewportWidth,
			Height: d.opts.ViewportHeight,
		},
	}
	if d.opts.UserAgent != "" {
		contextOpts.UserAgent = &d.opts.UserAgent
	}
	if d.opts.Locale != "" {
		contextOpts.Locale = &d.opts.Locale
	}
	if d.opts.TimezoneID != "" {
		contextOpts.TimezoneId = &d.opts.TimezoneID
	}

	bc, err := d.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &playwrightContext{bc: bc, timeout: d.opts.Timeout}, nil
}

func (d *PlaywrightDriver) headers() map[string]string {
	headers := make(map[string]string, len(d.opts.ExtraHeaders)+1)
	for k, v := range d.opts.ExtraHeaders {
		headers[k] = v
	}
	if d.opts.AcceptLanguage != "" {
		headers["Accept-Language"] = d.opts.AcceptLanguage
	}
	return headers
}

func (d *PlaywrightDriver) Close() error {
	var errs []error

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

type playwrightContext struct {
	bc      playwright.BrowserContext
	timeout time.Duration
}

func (c *playwrightContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	ms := millis(c.timeout)
	page.SetDefaultTimeout(ms)
	page.SetDefaultNavigationTimeout(ms)

	return &playwrightPage{page: page, timeout: c.timeout}, nil
}

func (c *playwrightContext) Close() error {
	if err := c.bc.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	return await(ctx, func() error {
		_, err := p.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(millis(timeoutFor(ctx, p.timeout))),
		})
		return normalize(err)
	})
}

func (p *playwrightPage) GoBack(ctx context.Context) error {
	return await(ctx, func() error {
		_, err := p.page.GoBack(playwright.PageGoBackOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(millis(timeoutFor(ctx, p.timeout))),
		})
		return normalize(err)
	})
}

func (p *playwrightPage) Snapshot(ctx context.Context) (Snapshot, error) {
	return awaitValue(ctx, func() (Snapshot, error) {
		html, err := p.page.Content()
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{URL: p.page.URL(), HTML: html}, nil
	})
}

// normalize maps playwright's own timeout onto context.DeadlineExceeded so
// callers classify both the same way.
func normalize(err error) error {
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

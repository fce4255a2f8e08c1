package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodDriver drives Chromium over CDP with go-rod. Each OpenContext call
// creates an incognito browser sharing the launched process.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     *Options
	logger   *slog.Logger
}

func NewRod(opts *Options) (*RodDriver, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage")
	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}
	if opts.ProxyServer != "" {
		l = l.Proxy(opts.ProxyServer)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodDriver{
		launcher: l,
		browser:  b,
		opts:     opts,
		logger:   slog.Default().With("component", "browser", "engine", EngineRod),
	}, nil
}

func (d *RodDriver) OpenContext(ctx context.Context) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &rodContext{browser: incognito, opts: d.opts}, nil
}

func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type rodContext struct {
	browser *rod.Browser
	opts    *Options
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	if c.opts.UserAgent != "" || c.opts.AcceptLanguage != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      c.opts.UserAgent,
			AcceptLanguage: c.opts.AcceptLanguage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.ViewportWidth,
			Height:            c.opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return &rodPage{page: page, timeout: c.opts.Timeout}, nil
}

func (c *rodContext) Close() error {
	if err := c.browser.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) bound(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, timeoutFor(ctx, p.timeout))
	return p.page.Context(ctx), cancel
}

func (p *rodPage) Goto(ctx context.Context, url string) error {
	page, cancel := p.bound(ctx)
	defer cancel()

	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) GoBack(ctx context.Context) error {
	page, cancel := p.bound(ctx)
	defer cancel()

	if err := page.NavigateBack(); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Snapshot(ctx context.Context) (Snapshot, error) {
	page, cancel := p.bound(ctx)
	defer cancel()

	html, err := page.HTML()
	if err != nil {
		return Snapshot{}, err
	}

	info, err := page.Info()
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{URL: info.URL, HTML: html}, nil
}

// Package browsertest provides an in-memory browser.Driver serving canned
// HTML by URL. It records every navigation so tests can assert ordering.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maltedev/listing-report/internal/browser"
)

// ErrNoHistory is returned by GoBack on a page without a previous entry.
var ErrNoHistory = errors.New("no previous page in history")

// Nav is one recorded navigation.
type Nav struct {
	Op  string // "goto" or "back"
	URL string // page URL after the navigation
}

// Driver is a fake browser.Driver. Configure Pages and failure maps before
// handing it to the code under test.
type Driver struct {
	// Pages maps URL to the HTML served for it.
	Pages map[string]string
	// GotoErrors fails Goto for the given URL.
	GotoErrors map[string]error
	// BackErrors fails GoBack while the page is at the given URL.
	BackErrors map[string]error
	// Hang blocks Goto for the given URL until the caller's ctx is done.
	Hang map[string]bool
	// OpenErr fails every OpenContext call.
	OpenErr error

	mu       sync.Mutex
	contexts []*Context
	closed   bool
}

func New(pages map[string]string) *Driver {
	return &Driver{
		Pages:      pages,
		GotoErrors: make(map[string]error),
		BackErrors: make(map[string]error),
		Hang:       make(map[string]bool),
	}
}

func (d *Driver) OpenContext(ctx context.Context) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c := &Context{driver: d}
	d.contexts = append(d.contexts, c)
	return c, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Contexts returns every context opened so far.
func (d *Driver) Contexts() []*Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Context, len(d.contexts))
	copy(out, d.contexts)
	return out
}

// OpenContexts counts contexts that were opened and not closed.
func (d *Driver) OpenContexts() int {
	n := 0
	for _, c := range d.Contexts() {
		if !c.Closed() {
			n++
		}
	}
	return n
}

// Context is a fake browsing context.
type Context struct {
	driver *Driver

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("context closed")
	}

	p := &Page{driver: c.driver}
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pages returns the pages created in this context.
func (c *Context) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Page, len(c.pages))
	copy(out, c.pages)
	return out
}

// Page is a fake page with a navigation history stack.
type Page struct {
	driver *Driver

	mu      sync.Mutex
	history []string
	navs    []Nav
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.driver.Hang[url] {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := p.driver.GotoErrors[url]; err != nil {
		return err
	}
	if _, ok := p.driver.Pages[url]; !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, url)
	p.navs = append(p.navs, Nav{Op: "goto", URL: url})
	return nil
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.history) < 2 {
		return ErrNoHistory
	}
	if err := p.driver.BackErrors[p.history[len(p.history)-1]]; err != nil {
		return err
	}

	p.history = p.history[:len(p.history)-1]
	p.navs = append(p.navs, Nav{Op: "back", URL: p.history[len(p.history)-1]})
	return nil
}

func (p *Page) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return browser.Snapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.history) == 0 {
		return browser.Snapshot{URL: "about:blank"}, nil
	}
	url := p.history[len(p.history)-1]
	return browser.Snapshot{URL: url, HTML: p.driver.Pages[url]}, nil
}

// URL is the current page URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return "about:blank"
	}
	return p.history[len(p.history)-1]
}

// Navigations returns every recorded navigation in order.
func (p *Page) Navigations() []Nav {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Nav, len(p.navs))
	copy(out, p.navs)
	return out
}

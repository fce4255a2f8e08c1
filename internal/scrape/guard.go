package scrape

import (
	"context"
	"errors"
)

// ErrBlockedURL is returned when a navigation guard refuses a URL.
var ErrBlockedURL = errors.New("url blocked")

// URLGuard decides whether the browser may load a URL.
type URLGuard func(ctx context.Context, rawURL string) error

type guardKey struct{}

// WithURLGuard attaches guard to ctx. Every goto issued under ctx, list and
// detail pages alike, is checked before the browser sees it.
func WithURLGuard(ctx context.Context, guard URLGuard) context.Context {
	return context.WithValue(ctx, guardKey{}, guard)
}

func guardFrom(ctx context.Context) URLGuard {
	guard, _ := ctx.Value(guardKey{}).(URLGuard)
	return guard
}

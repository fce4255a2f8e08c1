package scrape

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSources is returned when a run is started without any site.
var ErrNoSources = errors.New("no sources to scrape")

// ErrDuplicateSource is returned when two sites share a source id.
var ErrDuplicateSource = errors.New("duplicate source id")

// Navigation operations recorded on NavigationError.
const (
	OpGoto = "goto"
	OpBack = "back"
)

// NavigationError is a failed goto or back navigation, including timeouts.
// It is fatal to the source being scraped.
type NavigationError struct {
	Op  string
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// EvaluationError means the page content could not be turned into records:
// invalid selectors, an unreadable document, or a failed snapshot.
type EvaluationError struct {
	URL string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation at %s: %v", e.URL, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// AggregationError aborts a whole run. It names the source that failed and
// wraps the underlying navigation or evaluation error.
type AggregationError struct {
	SourceID string
	Err      error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("source %s: %v", e.SourceID, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// Error kinds reported by Kind.
const (
	KindNavigation = "navigation"
	KindEvaluation = "evaluation"
	KindTimeout    = "timeout"
	KindCanceled   = "canceled"
	KindOther      = "other"
)

// Kind classifies err for logs, metrics and transport status codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	var nav *NavigationError
	if errors.As(err, &nav) {
		return KindNavigation
	}
	var eval *EvaluationError
	if errors.As(err, &eval) {
		return KindEvaluation
	}
	return KindOther
}

// FailedSource returns the source id carried by an AggregationError.
func FailedSource(err error) string {
	var agg *AggregationError
	if errors.As(err, &agg) {
		return agg.SourceID
	}
	return ""
}

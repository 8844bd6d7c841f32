package similar

import (
	"context"
	"errors"
	"time"

	"vibechain/internal/core"
)

const (
	statusOK        = "ok"
	statusTransient = "transient"
	statusError     = "error"
	statusCancelled = "cancelled"
)

// Instrumented reports every underlying call, so retries are counted individually.
type Instrumented struct {
	next    core.SimilarityService
	metrics core.Metrics
	now     func() time.Time
}

func NewInstrumented(next core.SimilarityService, metrics core.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics, now: time.Now}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Similar(ctx context.Context, seed core.Seed, limit int) ([]core.Suggestion, error) {
	start := i.now()
	suggestions, err := i.next.Similar(ctx, seed, limit)
	i.metrics.ObserveSimilarityCall(i.next.Name(), callStatus(err), i.now().Sub(start))
	return suggestions, err
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCancelled
	case errors.Is(err, core.ErrTransient):
		return statusTransient
	default:
		return statusError
	}
}

package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Func is one run of a periodic job.
type Func func(ctx context.Context) error

// Every calls fn each interval until ctx is done, recording every run on m
// (which may be nil). A failing run is logged and does not stop the loop.
func Every(ctx context.Context, interval time.Duration, jobType string, m *Metrics, fn Func) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunOnce(ctx, jobType, m, fn)
		}
	}
}

// RunOnce runs fn once and records the outcome.
func RunOnce(ctx context.Context, jobType string, m *Metrics, fn Func) error {
	start := time.Now()
	err := fn(ctx)
	m.observe(jobType, time.Since(start).Seconds(), err)
	if err != nil {
		slog.WarnContext(ctx, "background job failed", "job_type", jobType, "error", err)
	}
	return err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

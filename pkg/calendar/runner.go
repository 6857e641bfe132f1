package calendar

import (
	"context"
	"log/slog"
	"time"
)

// Runner syncs every calendar immediately and then on each interval until
// the context is cancelled. Failures are logged and retried on the next tick.
type Runner struct {
	Engine   *Engine
	Interval time.Duration
	// OnSynced, if set, is called after every pass.
	OnSynced func(results []Result, err error)
}

func (r *Runner) once(ctx context.Context) {
	results, err := r.Engine.SyncAll(ctx)
	if err != nil {
		slog.Error("calendar sync finished with errors", "err", err)
	} else {
		slog.Info("finished calendar sync", "calendars", len(results))
	}
	if r.OnSynced != nil {
		r.OnSynced(results, err)
	}
}

func (r *Runner) Run(ctx context.Context) {
	r.once(ctx)
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			r.once(ctx)
		case <-ctx.Done():
			slog.Info("stopping scheduled calendar sync")
			return
		}
	}
}

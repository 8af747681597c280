package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	appschedule "motorent/internal/app/schedule"
)

// Ticker runs each job on its own goroutine. A run that is still going when the
// next tick fires is not overlapped; the tick is dropped.
type Ticker struct {
	Logger *slog.Logger

	wg sync.WaitGroup
}

func (t *Ticker) Every(ctx context.Context, name string, interval time.Duration, job appschedule.Job) {
	if interval <= 0 {
		interval = time.Minute
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.run(ctx, name, job)
			}
		}
	}()
}

// Wait blocks until every job loop has stopped.
func (t *Ticker) Wait() {
	t.wg.Wait()
}

func (t *Ticker) run(ctx context.Context, name string, job appschedule.Job) {
	started := time.Now()
	err := job(ctx)
	if t.Logger == nil {
		return
	}
	if err != nil && ctx.Err() == nil {
		t.Logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	t.Logger.Debug("scheduled job finished", "job", name, "duration", time.Since(started))
}

var _ appschedule.Scheduler = (*Ticker)(nil)

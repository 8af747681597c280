package schedule

import (
	"context"
	"time"
)

// Job is one run of a periodic task. Its error is logged by the scheduler and
// does not stop later runs.
type Job func(ctx context.Context) error

// Scheduler runs named jobs at a fixed interval until ctx is cancelled.
type Scheduler interface {
	Every(ctx context.Context, name string, interval time.Duration, job Job)
}

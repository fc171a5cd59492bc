package reply

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tasks runs detached background work: message persistence, generation, and
// platform delivery all happen off the caller's request path. Errors and
// panics terminate only the task they occur in. Wait joins all outstanding
// tasks, which tests use to observe settled state.
type Tasks struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewTasks(log *slog.Logger, timeout time.Duration) *Tasks {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Tasks{
		logger:  log.With(slog.String("service", "tasks")),
		timeout: timeout,
	}
}

// Go spawns fn in the background with its own timeout context.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("task panicked", slog.String("task", name), slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			t.logger.Error("task failed", slog.String("task", name), slog.Any("error", err))
		}
	}()
}

// Wait blocks until every spawned task has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}

package service

import (
	"context"
	"time"

	"github.com/olgkv/drivefetch/internal/domain"
)

const historyRetryAttempts = 3

// sleep is swapped out in tests.
var sleep = sleepContext

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// record journals a finished task, retrying with exponential backoff until
// ctx is cancelled. The task outcome is final whether or not the journal
// accepts it.
func (p *Pool) record(ctx context.Context, task domain.DownloadTask) {
	if p.history == nil {
		return
	}

	delay := time.Second
	for attempt := 1; attempt <= historyRetryAttempts; attempt++ {
		err := p.history.Append(task)
		if err == nil {
			return
		}
		p.logger.Warn("history append failed", "task", task.ID, "attempt", attempt, "error", err)
		if attempt == historyRetryAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			p.logger.Warn("history retry cancelled", "task", task.ID, "error", err)
			return
		}
		delay *= 2
	}
	p.logger.Error("history append gave up", "task", task.ID)
}

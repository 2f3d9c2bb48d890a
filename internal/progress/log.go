package progress

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olgkv/drivefetch/internal/domain"
)

// Log reports progress as structured log lines, at most one per interval per
// task, for output that is not a terminal.
type Log struct {
	logger   *slog.Logger
	interval time.Duration

	mu    sync.Mutex
	names map[string]string
	gates map[string]*rate.Sometimes
}

func NewLog(logger *slog.Logger, interval time.Duration) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Log{
		logger:   logger,
		interval: interval,
		names:    make(map[string]string),
		gates:    make(map[string]*rate.Sometimes),
	}
}

func (l *Log) TaskStarted(task domain.DownloadTask, meta domain.FileMetadata) {
	l.mu.Lock()
	l.names[task.ID] = meta.DisplayName
	l.gates[task.ID] = &rate.Sometimes{First: 1, Interval: l.interval}
	l.mu.Unlock()

	size := "unknown"
	if meta.SizeKnown() {
		size = strconv.FormatInt(meta.ByteSize, 10)
	}
	l.logger.Info("download started", "task", task.ID, "name", meta.DisplayName, "size", size)
}

func (l *Log) TaskProgress(taskID string, written, total int64) {
	l.mu.Lock()
	gate, ok := l.gates[taskID]
	name := l.names[taskID]
	l.mu.Unlock()
	if !ok {
		return
	}

	gate.Do(func() {
		attrs := []any{"task", taskID, "name", name, "written", written}
		if total > 0 {
			attrs = append(attrs, "total", total, "percent", Percent(written, total))
		}
		l.logger.Info("download progress", attrs...)
	})
}

func (l *Log) TaskFinished(task domain.DownloadTask) {
	l.mu.Lock()
	delete(l.gates, task.ID)
	delete(l.names, task.ID)
	l.mu.Unlock()

	if task.Status == domain.StatusSucceeded {
		l.logger.Info("download finished", "task", task.ID, "path", task.OutputPath, "bytes", task.BytesWritten)
		return
	}
	l.logger.Error("download failed", "task", task.ID, "link", task.SourceURL, "error", task.Error)
}

// Percent returns written/total as a percentage rounded to one decimal.
func Percent(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(written) * 100 / float64(total)
	return float64(int64(p*10+0.5)) / 10
}

// Package storage keeps an append-only journal of finished download tasks.
package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/olgkv/drivefetch/internal/domain"
)

// Record is one journal line.
type Record struct {
	ID         string            `json:"id"`
	SourceURL  string            `json:"source_url"`
	FileID     string            `json:"file_id,omitempty"`
	Status     domain.TaskStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	OutputPath string            `json:"output_path,omitempty"`
	Bytes      int64             `json:"bytes"`
	FinishedAt time.Time         `json:"finished_at"`
}

type RecordRepository interface {
	Load() ([]*Record, error)
	Append(rec *Record) error
}

type History struct {
	mu        sync.Mutex
	repo      RecordRepository
	total     int
	succeeded int
}

func NewHistory(repo RecordRepository) *History {
	return &History{repo: repo}
}

// NewFileHistory is a History backed by a JSON lines file at path.
func NewFileHistory(path string) *History {
	return NewHistory(NewJSONRepository(path))
}

// Append journals a finished task. Unfinished tasks are rejected.
func (h *History) Append(task domain.DownloadTask) error {
	if !task.Status.IsFinished() {
		return fmt.Errorf("task %s is %s, not finished", task.ID, task.Status)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rec := &Record{
		ID:         task.ID,
		SourceURL:  task.SourceURL,
		FileID:     task.FileID,
		Status:     task.Status,
		Error:      task.Error,
		OutputPath: task.OutputPath,
		Bytes:      task.BytesWritten,
		FinishedAt: task.FinishedAt,
	}
	if err := h.repo.Append(rec); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	h.total++
	if task.Status == domain.StatusSucceeded {
		h.succeeded++
	}
	return nil
}

// Load returns every journaled record. A missing journal is empty.
func (h *History) Load() ([]*Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.repo.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

// Stats returns how many records this process appended and how many of them succeeded.
func (h *History) Stats() (total int, succeeded int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total, h.succeeded
}

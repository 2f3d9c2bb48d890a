package ports

import "github.com/olgkv/drivefetch/internal/domain"

// ProgressReporter receives task lifecycle and byte progress events. Calls
// come from several workers at once.
type ProgressReporter interface {
	TaskStarted(task domain.DownloadTask, meta domain.FileMetadata)
	TaskProgress(taskID string, written, total int64)
	TaskFinished(task domain.DownloadTask)
}

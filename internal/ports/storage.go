package ports

import "github.com/olgkv/drivefetch/internal/domain"

// HistoryStore records finished tasks.
type HistoryStore interface {
	Append(task domain.DownloadTask) error
}

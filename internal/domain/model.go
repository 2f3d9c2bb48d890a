package domain

import "time"

type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// IsFinished reports whether the status is terminal.
func (s TaskStatus) IsFinished() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// DownloadTask tracks one accepted link from queueing to its terminal state.
type DownloadTask struct {
	ID           string     `json:"id"`
	SourceURL    string     `json:"source_url"`
	FileID       string     `json:"file_id,omitempty"`
	Status       TaskStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	BytesWritten int64      `json:"bytes_written"`
	StartedAt    time.Time  `json:"started_at,omitempty"`
	FinishedAt   time.Time  `json:"finished_at,omitempty"`
}

// FileMetadata is what the host tells us about a file. ByteSize is -1 when
// the host omits Content-Length.
type FileMetadata struct {
	FileID      string
	DisplayName string
	ContentType string
	ByteSize    int64
}

func (m FileMetadata) SizeKnown() bool {
	return m.ByteSize >= 0
}

type Summary struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Directory string         `json:"directory"`
	Tasks     []DownloadTask `json:"tasks"`
}

// Summarize counts terminal states of the given tasks.
func Summarize(dir string, tasks []DownloadTask) Summary {
	s := Summary{Directory: dir, Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

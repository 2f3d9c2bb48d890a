package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/olgkv/drivefetch/internal/domain"
)

// TaskSource is anything that can report the current task list.
type TaskSource interface {
	Snapshot() []domain.DownloadTask
}

type TasksResponse struct {
	Tasks     []domain.DownloadTask `json:"tasks"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
}

type Handler struct {
	src TaskSource
}

func NewHandler(src TaskSource) *Handler {
	return &Handler{src: src}
}

// Tasks reports every task the pool knows about, finished or not.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tasks := h.src.Snapshot()
	resp := TasksResponse{Tasks: tasks}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusSucceeded:
			resp.Succeeded++
		case domain.StatusFailed:
			resp.Failed++
		}
	}
	if resp.Tasks == nil {
		resp.Tasks = []domain.DownloadTask{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

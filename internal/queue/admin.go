package queue

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/sales-api/internal/common"
)

// QueueInspector is the subset of *asynq.Inspector used by AdminHandler.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// AdminHandler reports queue backlog for operators.
type AdminHandler struct {
	Inspector QueueInspector
}

type queueStats struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Paused    bool   `json:"paused"`
}

// Stats handles GET /admin/queues/{queue}.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue inspector not configured", nil)
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "queue"))
	if name == "" {
		name = DefaultQueue
	}
	info, err := h.Inspector.GetQueueInfo(name)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "queue not found", nil)
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", err.Error(), nil)
		return
	}
	for state, n := range map[string]int{
		"pending": info.Pending, "active": info.Active, "scheduled": info.Scheduled,
		"retry": info.Retry, "archived": info.Archived,
	} {
		QueueSize.WithLabelValues(info.Queue, state).Set(float64(n))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": queueStats{
		Queue:     info.Queue,
		Size:      info.Size,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
		Paused:    info.Paused,
	}})
}

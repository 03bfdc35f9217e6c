package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/taskmux/internal/service"
	"github.com/btouchard/taskmux/internal/track"
)

type handlers struct {
	svc *service.Service
}

// taskView is the JSON shape of a task snapshot.
type taskView struct {
	TaskID          string        `json:"task_id"`
	Type            string        `json:"type"`
	Status          string        `json:"status"`
	StreamedContent string        `json:"streamed_content"`
	QueuePosition   int           `json:"queue_position,omitempty"`
	Result          *track.Result `json:"result,omitempty"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func viewOf(s track.Snapshot) taskView {
	return taskView{
		TaskID:          s.TaskID,
		Type:            s.Type,
		Status:          string(s.Status),
		StreamedContent: s.StreamedContent,
		QueuePosition:   s.QueuePosition,
		Result:          s.Result,
		Error:           s.Error,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func viewsOf(snaps []track.Snapshot) []taskView {
	views := make([]taskView, len(snaps))
	for i, s := range snaps {
		views[i] = viewOf(s)
	}
	return views
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	snaps := h.svc.Tasks()

	if status := r.URL.Query().Get("status"); status != "" && status != "all" {
		filtered := snaps[:0]
		for _, s := range snaps {
			if string(s.Status) == status {
				filtered = append(filtered, s)
			}
		}
		snaps = filtered
	}

	writeJSON(w, http.StatusOK, viewsOf(snaps))
}

func (h *handlers) queueView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewsOf(h.svc.Queue()))
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.svc.Task(chi.URLParam(r, "taskID"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (h *handlers) submitTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type  string `json:"type"`
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	id, err := h.svc.Submit(r.Context(), req.Type, req.Input)
	if err != nil {
		slog.Error("submit failed", "error", err)
		writeError(w, http.StatusBadGateway, "runtime rejected the task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *handlers) cancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := h.svc.Cancel(r.Context(), taskID); err != nil {
		if _, ok := h.svc.Task(taskID); !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		slog.Error("cancel failed", "task_id", taskID, "error", err)
		writeError(w, http.StatusBadGateway, "runtime rejected the cancel")
		return
	}
	// The status flips once the cancelled event arrives on the stream.
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (h *handlers) removeTask(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Remove(chi.URLParam(r, "taskID")) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

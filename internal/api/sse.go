package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/taskmux/internal/track"
)

const keepaliveInterval = 30 * time.Second

// streamTask serves one task's live progress as Server-Sent Events:
// an initial snapshot, then incremental token deltas and status changes
// until the task is terminal or removed.
//
// The fabric listener only wakes the writer; deltas are computed against
// the latest snapshot, so coalesced notifications never lose content.
func (h *handlers) streamTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	if _, ok := h.svc.Task(taskID); !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	setSSEHeaders(w)

	// Subscribe before the initial read so no change can slip between
	// the snapshot and the first wake.
	wake := make(chan struct{}, 1)
	unsubscribe := h.svc.Subscribe(taskID, func(track.Change) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	snap, ok := h.svc.Task(taskID)
	if !ok {
		sendEvent(w, "removed", map[string]string{"task_id": taskID})
		flusher.Flush()
		return
	}
	sendEvent(w, "snapshot", viewOf(snap))
	flusher.Flush()

	sent := len(snap.StreamedContent)
	lastStatus := snap.Status
	if lastStatus.Terminal() {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-wake:
			snap, ok := h.svc.Task(taskID)
			if !ok {
				sendEvent(w, "removed", map[string]string{"task_id": taskID})
				flusher.Flush()
				return
			}

			if len(snap.StreamedContent) > sent {
				sendEvent(w, "token", map[string]string{"text": snap.StreamedContent[sent:]})
				sent = len(snap.StreamedContent)
			}
			if snap.Status != lastStatus {
				lastStatus = snap.Status
				sendEvent(w, "status", viewOf(snap))
			}
			flusher.Flush()

			if snap.Status.Terminal() {
				return
			}
		}
	}
}

// streamAll serves a firehose of status changes across every task.
// Slow consumers lose changes rather than stalling the tracker; each
// event carries enough state to re-sync with a list call.
func (h *handlers) streamAll(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	setSSEHeaders(w)

	changes := make(chan track.Change, 256)
	var dropped atomic.Int64
	unsubscribe := h.svc.Subscribe(track.KeyAll, func(c track.Change) {
		select {
		case changes <- c:
		default:
			dropped.Add(1)
		}
	})
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			if n := dropped.Load(); n > 0 {
				slog.Debug("firehose consumer lost changes", "dropped", n)
			}
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case c := <-changes:
			payload := map[string]any{
				"task_id": c.TaskID,
				"status":  string(c.Snapshot.Status),
				"removed": c.Removed,
			}
			sendEvent(w, "change", payload)
			flusher.Flush()
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

func sendEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Debug("sse payload encoding failed", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/service"
	"github.com/btouchard/taskmux/internal/track"
)

const longPollMaxWait = 30

// CheckTask returns a handler that reports a task's current status.
// When wait_seconds > 0 and the task is still active, it long-polls
// until the status changes or the timeout expires.
func CheckTask(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskID, _ := args["task_id"].(string)
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		snap, ok := svc.Task(taskID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Task not found: %s", taskID)), nil
		}

		waitSeconds := 0
		if w, ok := args["wait_seconds"].(float64); ok && w > 0 {
			waitSeconds = int(w)
			if waitSeconds > longPollMaxWait {
				waitSeconds = longPollMaxWait
			}
		}

		if waitSeconds > 0 && !snap.Status.Terminal() {
			snap = waitForChange(ctx, svc, snap, time.Duration(waitSeconds)*time.Second)
		}

		includeContent, _ := args["include_content"].(bool)

		return mcp.NewToolResultText(formatCheckResponse(snap, includeContent)), nil
	}
}

// waitForChange blocks until the task's status changes, the timeout
// expires, or the context is cancelled. It rides the change feed
// rather than polling, so status flips are seen immediately.
func waitForChange(ctx context.Context, svc *service.Service, initial track.Snapshot, timeout time.Duration) track.Snapshot {
	wake := make(chan struct{}, 1)
	unsubscribe := svc.Subscribe(initial.TaskID, func(track.Change) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	latest := func() track.Snapshot {
		if snap, ok := svc.Task(initial.TaskID); ok {
			return snap
		}
		return initial
	}

	// The status may have flipped between the caller's read and the
	// subscription; re-check before blocking.
	if snap := latest(); snap.Status != initial.Status {
		return snap
	}

	deadline := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return latest()
		case <-deadline:
			return latest()
		case <-wake:
			snap := latest()
			if snap.Status != initial.Status {
				return snap
			}
		}
	}
}

func formatCheckResponse(snap track.Snapshot, includeContent bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task %s — %s\n", snap.TaskID, snap.Status)
	fmt.Fprintf(&b, "Type: %s\n", snap.Type)

	switch snap.Status {
	case track.StatusQueued, track.StatusPaused:
		if snap.QueuePosition > 0 {
			fmt.Fprintf(&b, "Queue position: %d\n", snap.QueuePosition)
		}

	case track.StatusRunning:
		fmt.Fprintf(&b, "Streamed so far: %d bytes\n", len(snap.StreamedContent))

	case track.StatusCompleted:
		b.WriteString("Use get_result for the full result.\n")

	case track.StatusError:
		if snap.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", snap.Error)
		}
	}

	if includeContent && snap.StreamedContent != "" {
		fmt.Fprintf(&b, "\n--- Content so far ---\n%s", snap.StreamedContent)
	}

	return b.String()
}

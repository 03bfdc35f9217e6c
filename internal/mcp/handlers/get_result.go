package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/service"
	"github.com/btouchard/taskmux/internal/track"
)

// GetResult returns a handler that provides the full result of a finished task.
func GetResult(svc *service.Service) server.ToolHandlerFunc {
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

		if !snap.Status.Terminal() {
			return mcp.NewToolResultText(
				fmt.Sprintf("Task %s is still %s. Use check_task to monitor progress.", taskID, snap.Status),
			), nil
		}

		var b strings.Builder
		switch snap.Status {
		case track.StatusCompleted:
			fmt.Fprintf(&b, "Task %s completed.\n", taskID)
			if snap.Result != nil && snap.Result.Content != "" {
				fmt.Fprintf(&b, "\n%s\n", snap.Result.Content)
			} else if snap.StreamedContent != "" {
				fmt.Fprintf(&b, "\n%s\n", snap.StreamedContent)
			}
		case track.StatusError:
			fmt.Fprintf(&b, "Task %s failed.\n", taskID)
			if snap.Error != "" {
				fmt.Fprintf(&b, "\nError: %s\n", snap.Error)
			}
			if snap.StreamedContent != "" {
				fmt.Fprintf(&b, "\nPartial content:\n%s\n", snap.StreamedContent)
			}
		case track.StatusCancelled:
			fmt.Fprintf(&b, "Task %s was cancelled.\n", taskID)
			if snap.StreamedContent != "" {
				fmt.Fprintf(&b, "\nPartial content:\n%s\n", snap.StreamedContent)
			}
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}

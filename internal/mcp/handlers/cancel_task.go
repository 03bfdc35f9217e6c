package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/service"
)

// CancelTask returns a handler that asks the runtime to cancel a task.
func CancelTask(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskID, _ := args["task_id"].(string)
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		if err := svc.Cancel(ctx, taskID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Cancel failed: %s", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Cancel requested for task %s. The status flips to cancelled once the runtime confirms.",
			taskID,
		)), nil
	}
}

// DropTask returns a handler that removes a task from the tracker and
// its archive.
func DropTask(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskID, _ := args["task_id"].(string)
		if taskID == "" {
			return mcp.NewToolResultError("task_id is required"), nil
		}

		if !svc.Remove(taskID) {
			return mcp.NewToolResultError(fmt.Sprintf("Task not found: %s", taskID)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task %s dropped.", taskID)), nil
	}
}

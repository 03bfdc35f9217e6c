package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/service"
)

// SubmitTask returns a handler that sends work to the agent runtime
// and reports the assigned task ID.
func SubmitTask(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		taskType, _ := args["type"].(string)
		if taskType == "" {
			return mcp.NewToolResultError("type is required"), nil
		}
		input, _ := args["input"].(string)
		if input == "" {
			return mcp.NewToolResultError("input is required"), nil
		}

		id, err := svc.Submit(ctx, taskType, input)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Submit failed: %s", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(
			"Task submitted.\n\n- ID: %s\n- Type: %s\n\nUse check_task with task_id %q to monitor progress.",
			id, taskType, id,
		)), nil
	}
}

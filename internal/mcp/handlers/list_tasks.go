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

// ListTasks returns a handler that lists tracked tasks with optional filters.
func ListTasks(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		status, _ := args["status"].(string)
		limit := 20
		if n, ok := args["limit"].(float64); ok && n > 0 {
			limit = int(n)
		}

		var snaps []track.Snapshot
		if status == "queue" {
			snaps = svc.Queue()
		} else {
			snaps = svc.Tasks()
			if status != "" && status != "all" {
				filtered := snaps[:0]
				for _, s := range snaps {
					if string(s.Status) == status {
						filtered = append(filtered, s)
					}
				}
				snaps = filtered
			}
		}
		if len(snaps) > limit {
			snaps = snaps[:limit]
		}

		if len(snaps) == 0 {
			return mcp.NewToolResultText("No tasks found matching the given filters."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📋 Tasks (%d found)\n\n", len(snaps))

		for _, s := range snaps {
			sb.WriteString(fmt.Sprintf("%s **%s** — %s\n", statusIcon(s.Status), s.TaskID, s.Status))
			sb.WriteString(fmt.Sprintf("  Type: %s\n", s.Type))

			if s.QueuePosition > 0 {
				sb.WriteString(fmt.Sprintf("  Queue position: %d\n", s.QueuePosition))
			}
			if s.Status == track.StatusRunning && s.StreamedContent != "" {
				sb.WriteString(fmt.Sprintf("  Streamed: %d bytes\n", len(s.StreamedContent)))
			}
			if s.Error != "" {
				sb.WriteString(fmt.Sprintf("  Error: %s\n", s.Error))
			}

			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func statusIcon(s track.Status) string {
	switch s {
	case track.StatusQueued:
		return "📥"
	case track.StatusRunning:
		return "🔄"
	case track.StatusPaused:
		return "⏸️"
	case track.StatusCompleted:
		return "✅"
	case track.StatusError:
		return "❌"
	case track.StatusCancelled:
		return "🚫"
	default:
		return "❓"
	}
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskmux/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// submit_task — Send work to the agent runtime
	s.AddTool(
		mcp.NewTool("submit_task",
			mcp.WithDescription("Submit a task to the agent runtime. Returns immediately with a task ID. The task streams asynchronously — use check_task to monitor progress."),
			mcp.WithString("type",
				mcp.Required(),
				mcp.Description("Kind of work, e.g. 'chat' or 'enhance'"),
			),
			mcp.WithString("input",
				mcp.Required(),
				mcp.Description("The task input text"),
			),
		),
		handlers.SubmitTask(deps.Tasks),
	)

	// check_task — Check task status
	s.AddTool(
		mcp.NewTool("check_task",
			mcp.WithDescription("Check the current status and streamed content of a task. Supports long-polling with wait_seconds to reduce polling overhead."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID returned by submit_task"),
			),
			mcp.WithNumber("wait_seconds",
				mcp.Description("Wait up to N seconds for a status change before responding (long-poll). 0 for immediate response."),
			),
			mcp.WithBoolean("include_content",
				mcp.Description("Include the streamed content so far"),
			),
		),
		handlers.CheckTask(deps.Tasks),
	)

	// get_result — Get the terminal result of a task
	s.AddTool(
		mcp.NewTool("get_result",
			mcp.WithDescription("Get the complete result of a finished task."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID returned by submit_task"),
			),
		),
		handlers.GetResult(deps.Tasks),
	)

	// list_tasks — List tracked tasks
	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List tracked tasks with optional filters. Use status 'queue' for the waiting queue in position order."),
			mcp.WithString("status",
				mcp.Description("Filter by status"),
				mcp.Enum("all", "queue", "queued", "running", "paused", "completed", "error", "cancelled"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of tasks to return (default: 20)"),
			),
		),
		handlers.ListTasks(deps.Tasks),
	)

	// cancel_task — Cancel a running or queued task
	s.AddTool(
		mcp.NewTool("cancel_task",
			mcp.WithDescription("Ask the runtime to cancel a task. The status flips to cancelled once the runtime confirms on the event stream."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID to cancel"),
			),
		),
		handlers.CancelTask(deps.Tasks),
	)

	// drop_task — Forget a finished task
	s.AddTool(
		mcp.NewTool("drop_task",
			mcp.WithDescription("Remove a task from the tracker and its archive. Use after the result has been consumed."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("The task ID to drop"),
			),
		),
		handlers.DropTask(deps.Tasks),
	)
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/taskmux/internal/gateway"
	"github.com/btouchard/taskmux/internal/ingest"
	"github.com/btouchard/taskmux/internal/service"
	"github.com/btouchard/taskmux/internal/track"
)

func newTestDeps(t *testing.T) *service.Service {
	t.Helper()

	lb := gateway.NewLoopback()
	tr := track.New(0)
	ing := ingest.New(lb, tr)
	svc := service.New(lb, tr, ing, nil)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func waitTerminal(t *testing.T, svc *service.Service, id string) track.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if snap, ok := svc.Task(id); ok && snap.Status.Terminal() {
			return snap
		}
		select {
		case <-deadline:
			t.Fatal("task did not reach a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func submit(t *testing.T, svc *service.Service, input string) string {
	t.Helper()
	id, err := svc.Submit(context.Background(), "chat", input)
	require.NoError(t, err)
	return id
}

// --- SubmitTask tests ---

func TestSubmitTask_WhenMissingType_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := SubmitTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"input": "do something",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "type is required")
}

func TestSubmitTask_WhenMissingInput_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := SubmitTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"type": "chat",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "input is required")
}

func TestSubmitTask_ReturnsTaskID(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := SubmitTask(svc)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"type":  "chat",
		"input": "Hello",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "Task submitted")
	assert.Contains(t, text, "check_task")

	snaps := svc.Tasks()
	require.Len(t, snaps, 1)
	waitTerminal(t, svc, snaps[0].TaskID)
}

// --- CheckTask tests ---

func TestCheckTask_WhenMissingTaskID_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := CheckTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "task_id is required")
}

func TestCheckTask_WhenTaskNotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := CheckTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": "loop-nonexist",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "not found")
}

func TestCheckTask_WhenCompleted_ShowsStatus(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := CheckTask(svc)

	id := submit(t, svc, "Hello there")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": id,
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "completed")
	assert.Contains(t, text, id)
}

func TestCheckTask_WithIncludeContent_ShowsStreamedContent(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := CheckTask(svc)

	id := submit(t, svc, "streamed words here")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id":         id,
		"include_content": true,
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "streamed words here")
}

func TestCheckTask_LongPoll_ReturnsOnStatusChange(t *testing.T) {
	t.Parallel()

	lb := gateway.NewLoopback()
	lb.TokenDelay = 20 * time.Millisecond
	tr := track.New(0)
	ing := ingest.New(lb, tr)
	svc := service.New(lb, tr, ing, nil)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	handler := CheckTask(svc)

	id := submit(t, svc, "one two three")

	start := time.Now()
	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id":      id,
		"wait_seconds": float64(10),
	}))
	require.NoError(t, err)

	// Should return on the status flip, well before the 10s timeout.
	assert.Less(t, time.Since(start), 5*time.Second)
	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "completed")
}

// --- GetResult tests ---

func TestGetResult_WhenTaskNotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := GetResult(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": "loop-nonexist",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "not found")
}

func TestGetResult_WhenCompleted_ReturnsContent(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := GetResult(svc)

	id := submit(t, svc, "final answer")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": id,
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "completed")
	assert.Contains(t, text, "final answer")
}

func TestGetResult_WhenStillActive_SuggestsCheckTask(t *testing.T) {
	t.Parallel()

	lb := gateway.NewLoopback()
	lb.TokenDelay = 50 * time.Millisecond
	tr := track.New(0)
	ing := ingest.New(lb, tr)
	svc := service.New(lb, tr, ing, nil)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	handler := GetResult(svc)

	id := submit(t, svc, "one two three four five")

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": id,
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "check_task")
}

// --- ListTasks tests ---

func TestListTasks_WhenEmpty_SaysSo(t *testing.T) {
	t.Parallel()
	handler := ListTasks(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "No tasks found")
}

func TestListTasks_ShowsTrackedTasks(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := ListTasks(svc)

	id := submit(t, svc, "Hello")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, id)
	assert.Contains(t, text, "completed")
}

func TestListTasks_FiltersByStatus(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := ListTasks(svc)

	id := submit(t, svc, "Hello")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"status": "queued",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "No tasks found")
}

// --- CancelTask / DropTask tests ---

func TestCancelTask_WhenTaskNotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := CancelTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": "loop-nonexist",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "Cancel failed")
}

func TestDropTask_RemovesTask(t *testing.T) {
	t.Parallel()
	svc := newTestDeps(t)
	handler := DropTask(svc)

	id := submit(t, svc, "bye")
	waitTerminal(t, svc, id)

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": id,
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "dropped")

	_, ok := svc.Task(id)
	assert.False(t, ok)
}

func TestDropTask_WhenTaskNotFound_ReturnsError(t *testing.T) {
	t.Parallel()
	handler := DropTask(newTestDeps(t))

	result, err := handler(context.Background(), makeReq(map[string]any{
		"task_id": "loop-nonexist",
	}))
	require.NoError(t, err)

	text := result.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "not found")
}

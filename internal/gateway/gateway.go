package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/btouchard/taskmux/internal/track"
)

// Gateway is the upstream agent runtime as seen by taskmux: task
// submission, cancellation, a one-shot task listing for cold starts, and
// the single multiplexed event stream.
// Defined at the consumer side per Go conventions.
type Gateway interface {
	// Submit begins work upstream and returns the assigned task id.
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	// Cancel is fire-and-forget: the effect is observed later through a
	// cancelled event on the stream.
	Cancel(ctx context.Context, taskID string) error
	// List fetches the runtime's current tasks to seed the tracker.
	List(ctx context.Context) ([]TaskState, error)
	// Stream opens the multiplexed event channel. The channel closes when
	// the transport drops or ctx is done; the caller owns reconnection.
	Stream(ctx context.Context) (<-chan Envelope, error)
}

// SubmitRequest describes a unit of work for the runtime.
type SubmitRequest struct {
	Type  string `json:"type"`
	Input string `json:"input"`
}

// Envelope is the wire form of one multiplexed event.
type Envelope struct {
	TaskID  string          `json:"task_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TaskState is the wire form of a task returned by List.
type TaskState struct {
	TaskID          string    `json:"task_id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	StreamedContent string    `json:"streamed_content,omitempty"`
	QueuePosition   int       `json:"queue_position,omitempty"`
	Result          *Payload  `json:"result,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// Payload is the terminal result body used on the wire.
type Payload struct {
	Content string `json:"content"`
}

// Snapshot converts the wire state into a tracker snapshot.
func (s TaskState) Snapshot() track.Snapshot {
	snap := track.Snapshot{
		TaskID:          s.TaskID,
		Type:            s.Type,
		Status:          track.Status(s.Status),
		StreamedContent: s.StreamedContent,
		QueuePosition:   s.QueuePosition,
		Error:           s.Error,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Result != nil {
		snap.Result = &track.Result{Content: s.Result.Content}
	}
	return snap
}

package track

import "time"

// Status represents the lifecycle state of a tracked task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal returns true if no further events may mutate a task in this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Known returns true if s is one of the lifecycle states the tracker
// understands. Wire state carries statuses as strings; anything else would
// create a record that neither freezes nor queues.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusPaused, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Result is the terminal payload of a completed task.
type Result struct {
	Content string `json:"content"`
}

// record is the tracker's internal, mutable task state.
// seq orders records by insertion for stable listings.
type record struct {
	seq             uint64
	id              string
	taskType        string
	status          Status
	streamedContent []byte
	queuePosition   int
	result          *Result
	errMsg          string
	createdAt       time.Time
	updatedAt       time.Time
}

// apply mutates the record according to ev and reports whether anything
// changed. Terminal records are frozen: every event is a no-op.
// queuePosition is only ever set while the task is queued or paused.
func (r *record) apply(ev Event, now time.Time) bool {
	if r.status.Terminal() {
		return false
	}

	switch ev.Kind {
	case EventToken:
		if r.status == StatusQueued || r.status == StatusPaused {
			r.status = StatusRunning
			r.queuePosition = 0
		}
		r.streamedContent = append(r.streamedContent, ev.Token...)

	case EventProgress:
		if r.status != StatusQueued && r.status != StatusPaused {
			return false
		}
		r.queuePosition = ev.Position

	case EventPaused:
		r.status = StatusPaused
		if ev.Position > 0 {
			r.queuePosition = ev.Position
		}

	case EventResumed:
		if r.status != StatusPaused {
			return false
		}
		r.status = StatusQueued

	case EventDone:
		r.status = StatusCompleted
		r.queuePosition = 0
		if ev.Result != nil {
			res := *ev.Result
			r.result = &res
		} else {
			r.result = &Result{}
		}

	case EventError:
		r.status = StatusError
		r.queuePosition = 0
		r.errMsg = ev.Message

	case EventCancelled:
		r.status = StatusCancelled
		r.queuePosition = 0

	default:
		return false
	}

	r.updatedAt = now
	return true
}

func (r *record) snapshot() Snapshot {
	s := Snapshot{
		TaskID:          r.id,
		Type:            r.taskType,
		Status:          r.status,
		StreamedContent: string(r.streamedContent),
		QueuePosition:   r.queuePosition,
		Error:           r.errMsg,
		CreatedAt:       r.createdAt,
		UpdatedAt:       r.updatedAt,
	}
	if r.result != nil {
		res := *r.result
		s.Result = &res
	}
	return s
}

// Snapshot is a read-only copy of a task's state at a point in time.
type Snapshot struct {
	TaskID          string
	Type            string
	Status          Status
	StreamedContent string
	QueuePosition   int // 1-based; 0 means not positioned
	Result          *Result
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

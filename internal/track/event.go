package track

// EventKind identifies one of the multiplexed upstream event types.
type EventKind string

const (
	EventToken     EventKind = "token"
	EventProgress  EventKind = "progress"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
	EventCancelled EventKind = "cancelled"
)

// Event is a decoded upstream event addressed to a single task.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind     EventKind
	Token    string  // EventToken: text to append to the stream
	Position int     // EventProgress/EventPaused: 1-based queue ordinal
	Result   *Result // EventDone: terminal payload
	Message  string  // EventError: terminal error message
}

// TokenEvent appends text to a task's streamed content.
func TokenEvent(text string) Event {
	return Event{Kind: EventToken, Token: text}
}

// ProgressEvent reports a task's current queue position.
func ProgressEvent(position int) Event {
	return Event{Kind: EventProgress, Position: position}
}

// PausedEvent marks a task paused, optionally at a queue position.
func PausedEvent(position int) Event {
	return Event{Kind: EventPaused, Position: position}
}

// ResumedEvent returns a paused task to the queue.
func ResumedEvent() Event {
	return Event{Kind: EventResumed}
}

// DoneEvent completes a task with its result.
func DoneEvent(result Result) Event {
	return Event{Kind: EventDone, Result: &result}
}

// ErrorEvent fails a task with a message.
func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}

// CancelledEvent marks a task cancelled.
func CancelledEvent() Event {
	return Event{Kind: EventCancelled}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Loopback is an in-process runtime used for tests and for local
// development when no upstream is configured. Submitted work is echoed
// back token by token, then completed with the full input as the result.
type Loopback struct {
	// TokenDelay spaces out token emission to mimic a streaming model.
	TokenDelay time.Duration

	mu     sync.Mutex
	events chan Envelope
	tasks  map[string]*loopTask
	order  []string
}

type loopTask struct {
	state  TaskState
	cancel chan struct{}
}

// NewLoopback creates an idle loopback runtime.
func NewLoopback() *Loopback {
	return &Loopback{
		events: make(chan Envelope, 256),
		tasks:  make(map[string]*loopTask),
	}
}

func (l *Loopback) Submit(_ context.Context, req SubmitRequest) (string, error) {
	id := "loop-" + uuid.NewString()[:8]

	lt := &loopTask{
		state: TaskState{
			TaskID:    id,
			Type:      req.Type,
			Status:    "queued",
			CreatedAt: time.Now(),
		},
		cancel: make(chan struct{}),
	}

	l.mu.Lock()
	l.tasks[id] = lt
	l.order = append(l.order, id)
	l.mu.Unlock()

	go l.run(id, req.Input, lt.cancel)
	return id, nil
}

func (l *Loopback) Cancel(_ context.Context, taskID string) error {
	l.mu.Lock()
	lt, ok := l.tasks[taskID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %q not found", taskID)
	}

	select {
	case <-lt.cancel:
	default:
		close(lt.cancel)
	}
	return nil
}

func (l *Loopback) List(_ context.Context) ([]TaskState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	states := make([]TaskState, 0, len(l.order))
	for _, id := range l.order {
		states = append(states, l.tasks[id].state)
	}
	return states, nil
}

func (l *Loopback) Stream(ctx context.Context) (<-chan Envelope, error) {
	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		for {
			select {
			case env := <-l.events:
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// run echoes the input back in word-sized tokens, then completes.
func (l *Loopback) run(taskID, input string, cancel <-chan struct{}) {
	for _, word := range strings.SplitAfter(input, " ") {
		if l.TokenDelay > 0 {
			select {
			case <-time.After(l.TokenDelay):
			case <-cancel:
				l.finish(taskID, "cancelled", nil)
				return
			}
		}
		select {
		case <-cancel:
			l.finish(taskID, "cancelled", nil)
			return
		default:
		}

		l.setStatus(taskID, "running")
		l.appendContent(taskID, word)
		if !l.emit(taskID, "token", map[string]string{"text": word}, cancel) {
			l.finish(taskID, "cancelled", nil)
			return
		}
	}

	l.finish(taskID, "completed", &Payload{Content: input})
}

func (l *Loopback) finish(taskID, status string, result *Payload) {
	l.mu.Lock()
	lt, ok := l.tasks[taskID]
	if ok {
		lt.state.Status = status
		lt.state.Result = result
		lt.state.UpdatedAt = time.Now()
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	if status == "cancelled" {
		// The cancel channel is already closed; deliver best effort
		// rather than blocking a goroutine that must exit.
		l.emit(taskID, "cancelled", nil, nil)
		return
	}
	l.emit(taskID, "done", result, lt.cancel)
}

func (l *Loopback) setStatus(taskID, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lt, ok := l.tasks[taskID]; ok {
		lt.state.Status = status
		lt.state.UpdatedAt = time.Now()
	}
}

func (l *Loopback) appendContent(taskID, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lt, ok := l.tasks[taskID]; ok {
		lt.state.StreamedContent += text
	}
}

// emit queues an envelope, waiting on stop rather than blocking forever
// when the buffer is full and nobody consumes the stream anymore. With a
// nil stop the send is non-blocking. Reports whether the envelope was sent.
func (l *Loopback) emit(taskID, kind string, payload any, stop <-chan struct{}) bool {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	env := Envelope{TaskID: taskID, Kind: kind, Payload: raw}

	if stop == nil {
		select {
		case l.events <- env:
			return true
		default:
			return false
		}
	}
	select {
	case l.events <- env:
		return true
	case <-stop:
		return false
	}
}

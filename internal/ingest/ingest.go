package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/btouchard/taskmux/internal/gateway"
	"github.com/btouchard/taskmux/internal/track"
)

// Source provides the single multiplexed upstream event channel.
type Source interface {
	Stream(ctx context.Context) (<-chan gateway.Envelope, error)
}

const (
	defaultReconnectMin = time.Second
	defaultReconnectMax = 30 * time.Second
)

// Ingest routes the multiplexed event stream into the tracker. It owns at
// most one underlying subscription regardless of how many call sites ask
// for one, drops malformed events without breaking the stream, and
// reconnects with exponential backoff when the transport drops.
type Ingest struct {
	src     Source
	tracker *track.Tracker

	// ReconnectMin/ReconnectMax bound the backoff between attempts to
	// reopen the stream. Set before the first EnsureListening call.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an Ingest that applies src's events to tr.
func New(src Source, tr *track.Tracker) *Ingest {
	return &Ingest{
		src:          src,
		tracker:      tr,
		ReconnectMin: defaultReconnectMin,
		ReconnectMax: defaultReconnectMax,
	}
}

// EnsureListening starts the ingest loop if it is not already running.
// Repeated calls are no-ops: exactly one subscription is ever held, so a
// token is never applied twice.
func (i *Ingest) EnsureListening(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.started {
		return
	}
	i.started = true

	runCtx, cancel := context.WithCancel(ctx)
	i.cancel = cancel
	i.done = make(chan struct{})
	go i.run(runCtx, i.done)
}

// Close stops the ingest loop and waits for it to exit. After Close the
// next EnsureListening starts a fresh subscription.
func (i *Ingest) Close() {
	i.mu.Lock()
	if !i.started {
		i.mu.Unlock()
		return
	}
	i.started = false
	cancel, done := i.cancel, i.done
	i.mu.Unlock()

	cancel()
	<-done
}

func (i *Ingest) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := i.ReconnectMin
	for {
		ch, err := i.src.Stream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("event stream unavailable, retrying",
				"error", err,
				"backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, i.ReconnectMax)
			continue
		}

		backoff = i.ReconnectMin
		i.consume(ctx, ch)

		if ctx.Err() != nil {
			return
		}
		slog.Warn("event stream closed, reconnecting")
	}
}

func (i *Ingest) consume(ctx context.Context, ch <-chan gateway.Envelope) {
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return
			}
			ev, err := Decode(env)
			if err != nil {
				// A single bad event must never tear down the stream.
				slog.Warn("dropping malformed event",
					"task_id", env.TaskID,
					"kind", env.Kind,
					"error", err)
				continue
			}
			i.tracker.Apply(env.TaskID, ev)
		case <-ctx.Done():
			return
		}
	}
}

// Decode translates a wire envelope into a tracker event.
func Decode(env gateway.Envelope) (track.Event, error) {
	if env.TaskID == "" {
		return track.Event{}, fmt.Errorf("missing task id")
	}

	switch track.EventKind(env.Kind) {
	case track.EventToken:
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return track.Event{}, fmt.Errorf("token payload: %w", err)
		}
		return track.TokenEvent(p.Text), nil

	case track.EventProgress, track.EventPaused:
		var p struct {
			Position int `json:"position"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return track.Event{}, fmt.Errorf("%s payload: %w", env.Kind, err)
		}
		if track.EventKind(env.Kind) == track.EventPaused {
			return track.PausedEvent(p.Position), nil
		}
		if p.Position < 1 {
			return track.Event{}, fmt.Errorf("progress position %d out of range", p.Position)
		}
		return track.ProgressEvent(p.Position), nil

	case track.EventResumed:
		return track.ResumedEvent(), nil

	case track.EventDone:
		var res track.Result
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &res); err != nil {
				return track.Event{}, fmt.Errorf("done payload: %w", err)
			}
		}
		return track.DoneEvent(res), nil

	case track.EventError:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return track.Event{}, fmt.Errorf("error payload: %w", err)
		}
		return track.ErrorEvent(p.Message), nil

	case track.EventCancelled:
		return track.CancelledEvent(), nil

	default:
		return track.Event{}, fmt.Errorf("unknown event kind %q", env.Kind)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

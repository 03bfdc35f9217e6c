package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btouchard/taskmux/internal/gateway"
	"github.com/btouchard/taskmux/internal/ingest"
	"github.com/btouchard/taskmux/internal/store"
	"github.com/btouchard/taskmux/internal/track"
)

// Service ties the tracker to its collaborators: the upstream gateway,
// the event ingest, and the terminal-task archive. One Service is built
// at startup and injected into every consumer surface.
type Service struct {
	gw      gateway.Gateway
	tracker *track.Tracker
	ingest  *ingest.Ingest
	archive store.Store // nil disables archiving

	unsubscribe func()
}

// New assembles a Service. archive may be nil.
func New(gw gateway.Gateway, tr *track.Tracker, ing *ingest.Ingest, archive store.Store) *Service {
	return &Service{
		gw:      gw,
		tracker: tr,
		ingest:  ing,
		archive: archive,
	}
}

// Start seeds the tracker and begins listening for events.
//
// Seeding order matters: the runtime's live list wins over archived
// history, because Seed never overwrites a task that is already tracked.
// A dead upstream degrades the cold start but does not fail it — the
// ingest loop reconnects on its own.
func (s *Service) Start(ctx context.Context) error {
	// The archiver attaches before any seeding: Seed notifies per inserted
	// record and SaveTask is an upsert, so archive-seeded rows are re-saved
	// harmlessly, while a terminal task known only to the runtime gets
	// persisted before eviction can ever drop it.
	if s.archive != nil {
		s.unsubscribe = s.tracker.Subscribe(track.KeyAll, s.archiveChange)
	}

	if states, err := s.gw.List(ctx); err != nil {
		slog.Warn("cold-start list from runtime failed", "error", err)
	} else {
		snaps := make([]track.Snapshot, len(states))
		for i, st := range states {
			snaps[i] = st.Snapshot()
		}
		n := s.tracker.Seed(snaps)
		slog.Info("seeded live tasks", "count", n)
	}

	if s.archive != nil {
		archived, err := s.archive.ListTasks(store.Filter{})
		if err != nil {
			slog.Warn("cold-start list from archive failed", "error", err)
		} else {
			snaps := make([]track.Snapshot, len(archived))
			for i, a := range archived {
				snaps[i] = a.Snapshot()
			}
			n := s.tracker.Seed(snaps)
			slog.Info("seeded archived tasks", "count", n)
		}
	}

	s.ingest.EnsureListening(ctx)
	return nil
}

// Stop detaches the archiver and shuts down the ingest loop.
func (s *Service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.ingest.Close()
}

// archiveChange persists terminal snapshots. Evictions and explicit
// removals are not deleted here: the archive outlives the in-memory
// registry on purpose, and Remove handles its own archive deletion.
func (s *Service) archiveChange(c track.Change) {
	if c.Removed || !c.Snapshot.Status.Terminal() {
		return
	}
	if err := s.archive.SaveTask(store.FromSnapshot(c.Snapshot)); err != nil {
		slog.Error("archiving task failed", "task_id", c.TaskID, "error", err)
	}
}

// Submit sends work upstream and registers the returned id as queued.
func (s *Service) Submit(ctx context.Context, taskType, input string) (string, error) {
	id, err := s.gw.Submit(ctx, gateway.SubmitRequest{Type: taskType, Input: input})
	if err != nil {
		return "", fmt.Errorf("submitting to runtime: %w", err)
	}

	s.tracker.Add(id, taskType)
	slog.Info("task submitted", "task_id", id, "type", taskType)
	return id, nil
}

// Cancel asks the runtime to stop a task. The tracker is only updated
// when the corresponding cancelled event arrives on the stream.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	if _, ok := s.tracker.Get(taskID); !ok {
		return fmt.Errorf("task %q not found", taskID)
	}
	if err := s.gw.Cancel(ctx, taskID); err != nil {
		return fmt.Errorf("cancelling task %s: %w", taskID, err)
	}
	slog.Info("task cancel requested", "task_id", taskID)
	return nil
}

// Remove drops a task from the registry and the archive. Returns true if
// the task was tracked.
func (s *Service) Remove(taskID string) bool {
	removed := s.tracker.Remove(taskID)
	if removed && s.archive != nil {
		if err := s.archive.DeleteTask(taskID); err != nil {
			slog.Error("removing archived task failed", "task_id", taskID, "error", err)
		}
	}
	return removed
}

// Task returns a snapshot of one task.
func (s *Service) Task(taskID string) (track.Snapshot, bool) {
	return s.tracker.Get(taskID)
}

// Tasks returns snapshots of all tracked tasks in insertion order.
func (s *Service) Tasks() []track.Snapshot {
	return s.tracker.All()
}

// Queue returns waiting tasks ordered by queue position.
func (s *Service) Queue() []track.Snapshot {
	return s.tracker.Queue()
}

// Subscribe registers a change listener for a task id or track.KeyAll.
func (s *Service) Subscribe(key string, fn track.Listener) func() {
	return s.tracker.Subscribe(key, fn)
}

package track

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tracker is the authoritative in-memory registry of tracked tasks.
//
// All mutations (Add, Apply, Remove, Seed) commit under a state lock and
// then notify subscribers, serialized by a dispatch lock so observers see
// monotonic forward progress: a notification is never delivered for state
// older than one already observed for the same key. Listeners run on the
// mutating goroutine; they may read snapshots but must not call mutating
// methods.
//
// Construct one Tracker per process at startup and inject it; there is no
// package-level instance.
type Tracker struct {
	dispatchMu sync.Mutex // serializes mutation+notification pairs
	mu         sync.RWMutex
	tasks      map[string]*record
	nextSeq    uint64
	subs       *fabric

	// maxFinished bounds how many terminal records are retained.
	// 0 keeps everything; consumers remove records explicitly.
	maxFinished int

	now func() time.Time
}

// New creates an empty Tracker. maxFinished > 0 caps retained terminal
// records: once exceeded, the oldest terminal records are evicted and a
// removal change is published for each.
func New(maxFinished int) *Tracker {
	return &Tracker{
		tasks:       make(map[string]*record),
		subs:        newFabric(),
		maxFinished: maxFinished,
		now:         time.Now,
	}
}

// Add registers a new task in queued status. It is idempotent: adding an
// id that is already tracked is a no-op, so a racing submission and an
// early event seed cannot produce duplicates. Returns true if inserted.
func (t *Tracker) Add(taskID, taskType string) bool {
	if taskID == "" {
		return false
	}

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	if _, exists := t.tasks[taskID]; exists {
		t.mu.Unlock()
		return false
	}
	now := t.now()
	t.nextSeq++
	r := &record{
		seq:       t.nextSeq,
		id:        taskID,
		taskType:  taskType,
		status:    StatusQueued,
		createdAt: now,
		updatedAt: now,
	}
	t.tasks[taskID] = r
	snap := r.snapshot()
	t.mu.Unlock()

	t.subs.notify(Change{TaskID: taskID, Snapshot: snap})
	return true
}

// Apply runs the event reducer against the identified task and, if the
// record changed, notifies its subscribers after the mutation committed.
// Events for unknown ids are ignored: the tracker never creates a record
// from an event alone. Returns true if the record changed.
func (t *Tracker) Apply(taskID string, ev Event) bool {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	r, ok := t.tasks[taskID]
	if !ok {
		t.mu.Unlock()
		slog.Debug("event for untracked task ignored", "task_id", taskID, "kind", string(ev.Kind))
		return false
	}
	if !r.apply(ev, t.now()) {
		t.mu.Unlock()
		return false
	}
	snap := r.snapshot()
	var evicted []Change
	if snap.Status.Terminal() && t.maxFinished > 0 {
		evicted = t.evictFinishedLocked()
	}
	t.mu.Unlock()

	t.subs.notify(Change{TaskID: taskID, Snapshot: snap})
	for _, c := range evicted {
		t.subs.notify(c)
	}
	return true
}

// evictFinishedLocked drops the oldest terminal records beyond the
// retention cap. Caller holds t.mu.
func (t *Tracker) evictFinishedLocked() []Change {
	var finished []*record
	for _, r := range t.tasks {
		if r.status.Terminal() {
			finished = append(finished, r)
		}
	}
	if len(finished) <= t.maxFinished {
		return nil
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].seq < finished[j].seq })

	var changes []Change
	for _, r := range finished[:len(finished)-t.maxFinished] {
		delete(t.tasks, r.id)
		changes = append(changes, Change{TaskID: r.id, Snapshot: r.snapshot(), Removed: true})
		slog.Debug("evicted finished task", "task_id", r.id)
	}
	return changes
}

// Remove deletes a task from the registry. Subsequent reads report
// absence. Returns true if the task was tracked.
func (t *Tracker) Remove(taskID string) bool {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	r, ok := t.tasks[taskID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.tasks, taskID)
	snap := r.snapshot()
	t.mu.Unlock()

	t.subs.notify(Change{TaskID: taskID, Snapshot: snap, Removed: true})
	return true
}

// Seed bulk-loads snapshots (a cold-start list from the upstream runtime
// or the archive) without disturbing tasks that are already tracked.
// Returns the number of records inserted.
func (t *Tracker) Seed(snaps []Snapshot) int {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	var added []Change
	t.mu.Lock()
	for _, s := range snaps {
		if s.TaskID == "" {
			continue
		}
		if !s.Status.Known() {
			slog.Warn("skipping seed with unknown status", "task_id", s.TaskID, "status", string(s.Status))
			continue
		}
		if _, exists := t.tasks[s.TaskID]; exists {
			continue
		}
		t.nextSeq++
		r := &record{
			seq:             t.nextSeq,
			id:              s.TaskID,
			taskType:        s.Type,
			status:          s.Status,
			streamedContent: []byte(s.StreamedContent),
			queuePosition:   s.QueuePosition,
			errMsg:          s.Error,
			createdAt:       s.CreatedAt,
			updatedAt:       s.UpdatedAt,
		}
		if s.Status != StatusQueued && s.Status != StatusPaused {
			r.queuePosition = 0
		}
		if s.Result != nil {
			res := *s.Result
			r.result = &res
		}
		if r.createdAt.IsZero() {
			r.createdAt = t.now()
		}
		if r.updatedAt.IsZero() {
			r.updatedAt = r.createdAt
		}
		t.tasks[s.TaskID] = r
		added = append(added, Change{TaskID: s.TaskID, Snapshot: r.snapshot()})
	}
	t.mu.Unlock()

	for _, c := range added {
		t.subs.notify(c)
	}
	return len(added)
}

// Subscribe registers a listener for a task id, or for every task when
// key is KeyAll. The returned function removes exactly this listener.
func (t *Tracker) Subscribe(key string, fn Listener) func() {
	return t.subs.subscribe(key, fn)
}

// Get returns a point-in-time snapshot of one task.
func (t *Tracker) Get(taskID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.tasks[taskID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// All returns snapshots of every tracked task in insertion order.
// The slice is a consistent view of the registry at call time.
func (t *Tracker) All() []Snapshot {
	type seqSnap struct {
		seq  uint64
		snap Snapshot
	}

	t.mu.RLock()
	ordered := make([]seqSnap, 0, len(t.tasks))
	for _, r := range t.tasks {
		ordered = append(ordered, seqSnap{seq: r.seq, snap: r.snapshot()})
	}
	t.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	snaps := make([]Snapshot, len(ordered))
	for i, s := range ordered {
		snaps[i] = s.snap
	}
	return snaps
}

// Queue returns tasks that are queued or paused, ordered by ascending
// queue position. Tasks without a position sort after positioned ones,
// in insertion order.
func (t *Tracker) Queue() []Snapshot {
	var queue []Snapshot
	for _, s := range t.All() {
		if s.Status == StatusQueued || s.Status == StatusPaused {
			queue = append(queue, s)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		pi, pj := queue[i].QueuePosition, queue[j].QueuePosition
		if pi == 0 || pj == 0 {
			return pj == 0 && pi != 0
		}
		return pi < pj
	})
	return queue
}

// Len returns the number of tracked tasks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}

package track

import "sync"

// KeyAll is the wildcard subscription key. Listeners registered under it
// are notified on every task mutation, in addition to the task's own
// listeners. Task ids never collide with it.
const KeyAll = "*"

// Change describes a committed tracker mutation delivered to listeners.
type Change struct {
	TaskID   string
	Snapshot Snapshot
	Removed  bool
}

// Listener receives committed changes for a subscribed key.
type Listener func(Change)

// fabric maps subscription keys to ordered listener lists.
// Listeners are invoked in registration order; unsubscribing removes
// exactly the one registration it was returned for.
type fabric struct {
	mu     sync.Mutex
	nextID uint64
	keys   map[string][]subscription
}

type subscription struct {
	id uint64
	fn Listener
}

func newFabric() *fabric {
	return &fabric{keys: make(map[string][]subscription)}
}

// subscribe registers fn under key and returns its removal capability.
// Calling the returned function more than once is a no-op.
func (f *fabric) subscribe(key string, fn Listener) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.keys[key] = append(f.keys[key], subscription{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.keys[key]
		for i, s := range subs {
			if s.id == id {
				f.keys[key] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(f.keys[key]) == 0 {
			delete(f.keys, key)
		}
	}
}

// notify invokes every listener for the change's task key, then every
// wildcard listener. The listener list is copied before invocation so a
// listener may unsubscribe itself or subscribe others without corrupting
// the iteration.
func (f *fabric) notify(c Change) {
	for _, fn := range f.listeners(c.TaskID) {
		fn(c)
	}
	for _, fn := range f.listeners(KeyAll) {
		fn(c)
	}
}

func (f *fabric) listeners(key string) []Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.keys[key]
	if len(subs) == 0 {
		return nil
	}
	fns := make([]Listener, len(subs))
	for i, s := range subs {
		fns[i] = s.fn
	}
	return fns
}

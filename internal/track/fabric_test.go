package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFabric_Notify_InvokesInRegistrationOrder(t *testing.T) {
	t.Parallel()
	f := newFabric()

	var order []string
	f.subscribe("t1", func(Change) { order = append(order, "first") })
	f.subscribe("t1", func(Change) { order = append(order, "second") })
	f.subscribe(KeyAll, func(Change) { order = append(order, "all") })

	f.notify(Change{TaskID: "t1"})

	assert.Equal(t, []string{"first", "second", "all"}, order)
}

func TestFabric_Notify_KeyMismatchSkipsListener(t *testing.T) {
	t.Parallel()
	f := newFabric()

	called := false
	f.subscribe("t1", func(Change) { called = true })

	f.notify(Change{TaskID: "t2"})

	assert.False(t, called)
}

func TestFabric_Unsubscribe_DuringNotifyIsSafe(t *testing.T) {
	t.Parallel()
	f := newFabric()

	var calls int
	var unsub func()
	unsub = f.subscribe("t1", func(Change) {
		calls++
		unsub()
	})
	f.subscribe("t1", func(Change) { calls++ })

	f.notify(Change{TaskID: "t1"})
	f.notify(Change{TaskID: "t1"})

	// Self-removing listener fires once; its sibling fires both times.
	assert.Equal(t, 3, calls)
}

func TestFabric_Subscribe_DuringNotifyDoesNotFireForCurrentChange(t *testing.T) {
	t.Parallel()
	f := newFabric()

	late := 0
	f.subscribe("t1", func(Change) {
		f.subscribe("t1", func(Change) { late++ })
	})

	f.notify(Change{TaskID: "t1"})
	assert.Zero(t, late)

	f.notify(Change{TaskID: "t1"})
	assert.Equal(t, 1, late)
}

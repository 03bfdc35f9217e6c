package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopback_Submit_EchoesInputThenCompletes(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	ctx := context.Background()

	ch, err := lb.Stream(ctx)
	require.NoError(t, err)

	id, err := lb.Submit(ctx, SubmitRequest{Type: "chat", Input: "hello there"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var kinds []string
	deadline := time.After(5 * time.Second)
	for len(kinds) == 0 || kinds[len(kinds)-1] != "done" {
		select {
		case env := <-ch:
			assert.Equal(t, id, env.TaskID)
			kinds = append(kinds, env.Kind)
		case <-deadline:
			t.Fatal("loopback did not complete in time")
		}
	}

	assert.Equal(t, []string{"token", "token", "done"}, kinds)

	states, err := lb.List(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "completed", states[0].Status)
	assert.Equal(t, "hello there", states[0].StreamedContent)
	require.NotNil(t, states[0].Result)
	assert.Equal(t, "hello there", states[0].Result.Content)
}

func TestLoopback_Cancel_StopsStreaming(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	lb.TokenDelay = 50 * time.Millisecond
	ctx := context.Background()

	ch, err := lb.Stream(ctx)
	require.NoError(t, err)

	id, err := lb.Submit(ctx, SubmitRequest{Type: "chat", Input: "a b c d e f g h"})
	require.NoError(t, err)
	require.NoError(t, lb.Cancel(ctx, id))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case env := <-ch:
			if env.Kind == "cancelled" {
				return
			}
			require.NotEqual(t, "done", env.Kind, "cancelled task must not complete")
		case <-deadline:
			t.Fatal("no cancelled event received")
		}
	}
}

func TestLoopback_Cancel_UnblocksWriterWhenNobodyConsumes(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	ctx := context.Background()

	// Nobody ever reads the stream and the input overflows the event
	// buffer, so the writer parks on the full channel until cancelled.
	var input string
	for range 400 {
		input += "w "
	}
	id, err := lb.Submit(ctx, SubmitRequest{Type: "chat", Input: input})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, lb.Cancel(ctx, id))

	deadline := time.After(2 * time.Second)
	for {
		states, err := lb.List(ctx)
		require.NoError(t, err)
		require.Len(t, states, 1)
		if states[0].Status == "cancelled" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("writer still stuck, status %q", states[0].Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestLoopback_Cancel_UnknownTaskReturnsError(t *testing.T) {
	t.Parallel()

	lb := NewLoopback()
	err := lb.Cancel(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

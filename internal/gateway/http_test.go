package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_Submit_ReturnsTaskID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tasks", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chat", req.Type)

		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"task_id":"rt-42"}`)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "secret")
	id, err := g.Submit(context.Background(), SubmitRequest{Type: "chat", Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "rt-42", id)
}

func TestHTTPGateway_Submit_WhenRuntimeErrors_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "")
	_, err := g.Submit(context.Background(), SubmitRequest{Type: "chat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPGateway_Submit_WhenEmptyTaskID_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "")
	_, err := g.Submit(context.Background(), SubmitRequest{Type: "chat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty task id")
}

func TestHTTPGateway_Cancel_PostsToCancelEndpoint(t *testing.T) {
	t.Parallel()

	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "")
	require.NoError(t, g.Cancel(context.Background(), "rt-42"))
	assert.Equal(t, "/v1/tasks/rt-42/cancel", path)
}

func TestHTTPGateway_List_DecodesTaskStates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tasks", r.URL.Path)
		fmt.Fprint(w, `[
			{"task_id":"a","type":"chat","status":"running","streamed_content":"Hel"},
			{"task_id":"b","type":"enhance","status":"completed","result":{"content":"done"}}
		]`)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "")
	states, err := g.List(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "running", states[0].Status)

	snap := states[1].Snapshot()
	assert.Equal(t, "b", snap.TaskID)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "done", snap.Result.Content)
}

func TestHTTPGateway_Stream_RelaysEnvelopesAndSkipsBadFraming(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events", r.URL.Path)
		fmt.Fprintln(w, `{"task_id":"a","kind":"token","payload":{"text":"Hel"}}`)
		fmt.Fprintln(w, `this is not json`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"task_id":"a","kind":"done","payload":{"content":"Hel"}}`)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "")
	ch, err := g.Stream(context.Background())
	require.NoError(t, err)

	var envs []Envelope
	for env := range ch {
		envs = append(envs, env)
	}
	require.Len(t, envs, 2)
	assert.Equal(t, "token", envs[0].Kind)
	assert.Equal(t, "done", envs[1].Kind)
}

func TestHTTPGateway_Stream_ClosesOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl, ok := w.(http.Flusher)
		require.True(t, ok)
		fmt.Fprintln(w, `{"task_id":"a","kind":"token","payload":{"text":"x"}}`)
		fl.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	g := NewHTTPGateway(srv.URL, "")
	ch, err := g.Stream(ctx)
	require.NoError(t, err)

	env := <-ch
	assert.Equal(t, "token", env.Kind)

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel did not close after cancel")
	}
}

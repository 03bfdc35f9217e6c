package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPGateway talks JSON over HTTP to the agent runtime. The event stream
// endpoint delivers newline-delimited JSON envelopes on a long-lived
// response body.
type HTTPGateway struct {
	BaseURL string
	Token   string

	// Client is used for the request/response endpoints. The streaming
	// endpoint uses its own client without a global timeout so the
	// long-lived body is never cut mid-stream.
	Client *http.Client
}

// NewHTTPGateway creates a gateway for the runtime at baseURL.
// token may be empty when the runtime does not require auth.
func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *HTTPGateway) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding submit request: %w", err)
	}

	httpReq, err := g.newRequest(ctx, http.MethodPost, "/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submitting task: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("submitting task: runtime returned %s", resp.Status)
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("runtime returned an empty task id")
	}
	return out.TaskID, nil
}

func (g *HTTPGateway) Cancel(ctx context.Context, taskID string) error {
	httpReq, err := g.newRequest(ctx, http.MethodPost, "/v1/tasks/"+taskID+"/cancel", nil)
	if err != nil {
		return err
	}

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cancelling task %s: %w", taskID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cancelling task %s: runtime returned %s", taskID, resp.Status)
	}
	return nil
}

func (g *HTTPGateway) List(ctx context.Context) ([]TaskState, error) {
	httpReq, err := g.newRequest(ctx, http.MethodGet, "/v1/tasks", nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing tasks: runtime returned %s", resp.Status)
	}

	var states []TaskState
	if err := json.NewDecoder(resp.Body).Decode(&states); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return states, nil
}

// Stream opens the runtime's event endpoint and relays envelopes until
// the body ends or ctx is cancelled. Lines that are not valid envelopes
// are skipped here only at the framing level; semantic validation is the
// ingest layer's job.
func (g *HTTPGateway) Stream(ctx context.Context) (<-chan Envelope, error) {
	httpReq, err := g.newRequest(ctx, http.MethodGet, "/v1/events", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/x-ndjson")

	streamClient := &http.Client{}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("opening event stream: runtime returned %s", resp.Status)
	}

	ch := make(chan Envelope, 64)
	go g.relay(ctx, resp.Body, ch)
	return ch, nil
}

func (g *HTTPGateway) relay(ctx context.Context, body io.ReadCloser, ch chan<- Envelope) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			slog.Warn("skipping unframeable event line", "error", err)
			continue
		}

		select {
		case ch <- env:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		slog.Warn("event stream read error", "error", err)
	}
}

func (g *HTTPGateway) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	return req, nil
}

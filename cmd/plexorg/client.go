package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	v1 "github.com/vmunix/plexorg/internal/api/v1"
)

// Client wraps HTTP calls to the plexorg daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new plexorg API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // organize batches probe every file
		},
	}
}

func (c *Client) do(method, path string, body, result any, okCodes ...int) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode == http.StatusOK
	for _, code := range okCodes {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(raw))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// Tasks lists conversion tasks, optionally including archived ones.
func (c *Client) Tasks(archived bool) (*v1.ListTasksResponse, error) {
	path := "/api/v1/tasks"
	if archived {
		path += "?archived=true"
	}
	var resp v1.ListTasksResponse
	return &resp, c.do(http.MethodGet, path, nil, &resp)
}

// Task fetches one task.
func (c *Client) Task(id string) (*v1.TaskResponse, error) {
	var resp v1.TaskResponse
	return &resp, c.do(http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, &resp)
}

// CancelTask cancels a pending or running task.
func (c *Client) CancelTask(id string) error {
	return c.do(http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

// SetConcurrency changes the engine's concurrency limit.
func (c *Client) SetConcurrency(n int) error {
	return c.do(http.MethodPut, "/api/v1/concurrency", v1.ConcurrencyRequest{MaxConcurrent: n}, nil)
}

// Organize asks the daemon to organize paths.
func (c *Client) Organize(paths []string) (*v1.OrganizeResponse, error) {
	var resp v1.OrganizeResponse
	return &resp, c.do(http.MethodPost, "/api/v1/organize", v1.OrganizeRequest{Paths: paths}, &resp)
}

// History lists organize history, newest first.
func (c *Client) History(failed bool, limit int) ([]v1.HistoryResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if failed {
		q.Set("failed", "true")
	}
	var resp []v1.HistoryResponse
	return resp, c.do(http.MethodGet, "/api/v1/history?"+q.Encode(), nil, &resp)
}

// Events lists persisted events, newest first. A non-empty taskID limits the
// list to one conversion task, oldest first.
func (c *Client) Events(limit int, taskID string) (*v1.ListEventsResponse, error) {
	path := "/api/v1/events?limit=" + strconv.Itoa(limit)
	if taskID != "" {
		path = "/api/v1/tasks/" + url.PathEscape(taskID) + "/events"
	}
	var resp v1.ListEventsResponse
	return &resp, c.do(http.MethodGet, path, nil, &resp)
}

// StreamTask follows a task's server-sent events, calling fn for each one
// until the daemon ends the stream or ctx is done.
func (c *Client) StreamTask(ctx context.Context, id string, fn func(event string, data []byte)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks/"+url.PathEscape(id)+"/stream", nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client's timeout would cut long conversions short.
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var event string
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			fn(event, []byte(strings.TrimPrefix(line, "data: ")))
		case line == "":
			event = ""
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

package nodeodm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to a NodeODM-compatible processing server over its HTTP
// contract: list/create/cancel/restart/remove tasks, fetch status and
// output logs, download the result archive.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL. A zero timeout keeps the
// http.Client default (no deadline beyond the transport's).
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured remote endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Info fetches the remote server's /info payload.
func (c *Client) Info(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.getJSON(ctx, "/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListTasks returns the UUIDs of all tasks known to the remote server.
func (c *Client) ListTasks(ctx context.Context) ([]TaskRef, error) {
	var refs []TaskRef
	if err := c.getJSON(ctx, "/task/list", &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// TaskInfo fetches status and metadata for one task.
func (c *Client) TaskInfo(ctx context.Context, uuid string) (*TaskInfo, error) {
	var info TaskInfo
	if err := c.getJSON(ctx, "/task/"+url.PathEscape(uuid)+"/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TaskOutput fetches the task's console output starting at the given line.
func (c *Client) TaskOutput(ctx context.Context, uuid string, line int) ([]string, error) {
	var lines []string
	path := fmt.Sprintf("/task/%s/output?line=%d", url.PathEscape(uuid), line)
	if err := c.getJSON(ctx, path, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Image is one input photo for a new task.
type Image struct {
	Name string
	Data io.Reader
}

// NewTask submits a processing job: multipart images plus a JSON-encoded
// options array, matching NodeODM's POST /task/new.
func (c *Client) NewTask(ctx context.Context, name string, options []TaskOption, images []Image) (*NewTaskResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return nil, fmt.Errorf("new task: %w", err)
		}
	}
	if len(options) > 0 {
		opts, err := json.Marshal(options)
		if err != nil {
			return nil, fmt.Errorf("new task: encode options: %w", err)
		}
		if err := mw.WriteField("options", string(opts)); err != nil {
			return nil, fmt.Errorf("new task: %w", err)
		}
	}
	for _, img := range images {
		part, err := mw.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, fmt.Errorf("new task: %w", err)
		}
		if _, err := io.Copy(part, img.Data); err != nil {
			return nil, fmt.Errorf("new task: copy %s: %w", img.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("new task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/task/new", &body)
	if err != nil {
		return nil, fmt.Errorf("new task: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("new task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Op: "new task"}
	}

	var out NewTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("new task: decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("new task: %s", out.Error)
	}
	return &out, nil
}

// CancelTask asks the remote server to stop a running task.
func (c *Client) CancelTask(ctx context.Context, uuid string) error {
	return c.postUUID(ctx, "/task/cancel", uuid)
}

// RestartTask re-queues a task with its existing options.
func (c *Client) RestartTask(ctx context.Context, uuid string) error {
	return c.postUUID(ctx, "/task/restart", uuid)
}

// RemoveTask deletes a task and its results from the remote server.
func (c *Client) RemoveTask(ctx context.Context, uuid string) error {
	return c.postUUID(ctx, "/task/remove", uuid)
}

// DownloadArchive pulls the task's full result bundle (all.zip) and
// returns it fully buffered. Exactly one download per call; the caller
// indexes the bytes locally.
func (c *Client) DownloadArchive(ctx context.Context, uuid string) ([]byte, error) {
	path := "/task/" + url.PathEscape(uuid) + "/download/all.zip"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("archive unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Op: "archive unavailable"}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("archive unavailable: read body: %w", err)
	}
	log.Debug().
		Str("task", uuid).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("downloaded result archive")
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Op: "get " + path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("get %s: decode response: %w", path, err)
	}
	return nil
}

func (c *Client) postUUID(ctx context.Context, path, uuid string) error {
	form := url.Values{"uuid": {uuid}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(form.Encode())))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Op: "post " + path}
	}

	// NodeODM reports logical failures with 200 + {success:false}.
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && !out.Success && out.Error != "" {
		return fmt.Errorf("post %s: %s", path, out.Error)
	}
	return nil
}

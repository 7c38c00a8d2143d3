// Package gateway is the HTTP client for the recorder backend (status, recorder control, tasks, recordings).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finstream-guard/dashboard/internal/models"
)

// ErrStatus is returned (wrapped) when the backend answers with a non-2xx status.
var ErrStatus = errors.New("backend returned non-success status")

// statusBody is the wire shape of GET /status. storage_usage is optional.
type statusBody struct {
	RecorderRunning bool    `json:"recorder_running"`
	ActiveURLs      int     `json:"active_urls"`
	StorageUsage    *string `json:"storage_usage"`
}

// Ack is the loosely-typed acknowledgement the backend returns for commands.
type Ack map[string]interface{}

// Client talks to the recorder backend. Every call carries its own timeout.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a backend client. timeout <= 0 defaults to 5s.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// Status fetches the recorder service status.
func (c *Client) Status(ctx context.Context) (models.SystemStatus, error) {
	var body statusBody
	if err := c.do(ctx, http.MethodGet, "/status", nil, &body); err != nil {
		return models.SystemStatus{}, err
	}
	st := models.SystemStatus{
		RecorderRunning: body.RecorderRunning,
		ActiveURLs:      body.ActiveURLs,
		StorageUsage:    "0 B",
	}
	if st.ActiveURLs < 0 {
		st.ActiveURLs = 0
	}
	if body.StorageUsage != nil {
		st.StorageUsage = *body.StorageUsage
	}
	return st, nil
}

// StartRecorder asks the backend to start the recorder process.
func (c *Client) StartRecorder(ctx context.Context) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, "/recorder/start", nil, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// StopRecorder asks the backend to stop the recorder process.
func (c *Client) StopRecorder(ctx context.Context) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, "/recorder/stop", nil, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Tasks lists the configured stream targets in wire shape.
func (c *Client) Tasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		return nil, fmt.Errorf("tasks: expected array")
	}
	return tasks, nil
}

// AddTask submits a new stream target.
func (c *Client) AddTask(ctx context.Context, task models.NewTask) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, "/tasks", task, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Recordings lists archived recordings.
func (c *Client) Recordings(ctx context.Context) ([]models.Recording, error) {
	var recs []models.Recording
	if err := c.do(ctx, http.MethodGet, "/recordings", nil, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		return nil, fmt.Errorf("recordings: expected array")
	}
	return recs, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %w: %d", method, path, ErrStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	c.logger.Debug("backend call", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
	return nil
}

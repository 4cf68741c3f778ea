package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEventExists means the scheduler already holds a job with the same dedup
// comment. Callers treat it as success.
var ErrEventExists = errors.New("scheduled event already exists")

type Config struct {
	Endpoint    string
	AdminSecret string
	HTTPTimeout time.Duration
}

// Client enqueues one-off deferred jobs into the external scheduler. The
// scheduler owns execution and retries; this service only creates events.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type ScheduledEvent struct {
	Webhook    string
	ScheduleAt time.Time
	Payload    any
	Comment    string
}

type CreateResult struct {
	Message string `json:"message"`
	EventID string `json:"event_id"`
}

func (c *Client) CreateScheduledEvent(ctx context.Context, event *ScheduledEvent) (*CreateResult, error) {
	body, err := json.Marshal(map[string]any{
		"type": "create_scheduled_event",
		"args": map[string]any{
			"webhook":     event.Webhook,
			"schedule_at": event.ScheduleAt.UTC().Format(time.RFC3339),
			"payload":     event.Payload,
			"comment":     event.Comment,
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AdminSecret != "" {
		req.Header.Set("X-Hasura-Admin-Secret", c.cfg.AdminSecret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if isDedupConflict(resp.StatusCode, respBody) {
		return nil, ErrEventExists
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("create scheduled event failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var result CreateResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func isDedupConflict(statusCode int, body []byte) bool {
	if statusCode == http.StatusConflict {
		return true
	}
	return statusCode == http.StatusBadRequest && strings.Contains(string(body), "already exists")
}

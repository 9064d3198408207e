// Package daylinesdk is a minimal Dayline HTTP API client.
package daylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a Dayline server. The bearer token's subject selects
// whose schedule the calls operate on.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Block represents the API block model (partial).
type Block struct {
	ID         string `json:"id"`
	DayID      string `json:"day_id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	Index      int    `json:"index"`
	OutOfOrder bool   `json:"out_of_order,omitempty"`
	Tasks      []Task `json:"tasks,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID        string  `json:"id"`
	BlockID   *string `json:"block_id,omitempty"`
	Name      string  `json:"name"`
	Duration  int     `json:"duration"`
	Priority  string  `json:"priority"`
	Completed bool    `json:"completed"`
}

// Day represents the API day model (partial).
type Day struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Date      string   `json:"date"`
	BlockIDs  []string `json:"block_ids"`
	Completed bool     `json:"completed"`
	Rating    *Rating  `json:"rating,omitempty"`
}

// DayView is a day with its blocks loaded.
type DayView struct {
	Day    Day     `json:"day"`
	Blocks []Block `json:"blocks"`
}

// Rating is the scoring result for a day.
type Rating struct {
	Level   string `json:"level"`
	Score   int    `json:"score"`
	Points  int    `json:"points"`
	Comment string `json:"comment"`
}

// Report is the validation result for a day.
type Report struct {
	Valid      bool     `json:"valid"`
	Conflicts  []string `json:"conflicts"`
	Advisories []string `json:"advisories"`
	KeepOrder  []string `json:"keep_order"`
}

// BlockProposal is one block of a proposed schedule. A task references a
// persisted id or describes a draft under a local key.
type BlockProposal struct {
	Name      string         `json:"name,omitempty"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Type      string         `json:"type,omitempty"`
	Status    string         `json:"status,omitempty"`
	EventID   *string        `json:"event_id,omitempty"`
	RoutineID *string        `json:"routine_id,omitempty"`
	Tasks     []TaskProposal `json:"tasks,omitempty"`
}

type TaskProposal struct {
	ID        string `json:"id,omitempty"`
	LocalKey  string `json:"local_key,omitempty"`
	Name      string `json:"name,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Completed *bool  `json:"completed,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetDay fetches (lazily creating) a day.
func (c *Client) GetDay(ctx context.Context, date string) (DayView, error) {
	var resp DayView
	err := c.do(ctx, http.MethodGet, "v0/days/"+url.PathEscape(date), nil, &resp)
	return resp, err
}

// RebuildDay atomically replaces a day's schedule.
func (c *Client) RebuildDay(ctx context.Context, date string, blocks []BlockProposal, destructive bool) (DayView, error) {
	body := map[string]any{
		"blocks":      blocks,
		"destructive": destructive,
	}
	var resp DayView
	err := c.do(ctx, http.MethodPost, "v0/days/"+url.PathEscape(date)+"/rebuild", body, &resp)
	return resp, err
}

// ValidateSchedule runs the validation rules over a day's schedule.
func (c *Client) ValidateSchedule(ctx context.Context, date string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, "v0/days/"+url.PathEscape(date)+"/validate", nil, &resp)
	return resp, err
}

// ScoreDay rates a finished day and persists the rating.
func (c *Client) ScoreDay(ctx context.Context, date string) (Rating, error) {
	var resp Rating
	err := c.do(ctx, http.MethodPost, "v0/days/"+url.PathEscape(date)+"/score", nil, &resp)
	return resp, err
}

// InsertBlock places one new block into a day. Shifted lists the sibling
// ids whose index moved up.
func (c *Client) InsertBlock(ctx context.Context, date string, block BlockProposal) (Block, []string, error) {
	var resp struct {
		Block   Block    `json:"block"`
		Shifted []string `json:"shifted"`
	}
	err := c.do(ctx, http.MethodPost, "v0/days/"+url.PathEscape(date)+"/blocks", block, &resp)
	return resp.Block, resp.Shifted, err
}

// Regenerate rewrites a day from an instruction like "move <id> to 14:00".
func (c *Client) Regenerate(ctx context.Context, date, instruction string) (Day, error) {
	body := map[string]any{"instruction": instruction}
	var resp struct {
		Day Day `json:"day"`
	}
	err := c.do(ctx, http.MethodPost, "v0/days/"+url.PathEscape(date)+"/regenerate", body, &resp)
	return resp.Day, err
}

// SetBlockStatus completes, cancels, or reopens a block.
func (c *Client) SetBlockStatus(ctx context.Context, blockID, status string) (Block, error) {
	body := map[string]any{"status": status}
	var resp Block
	err := c.do(ctx, http.MethodPost, "v0/blocks/"+url.PathEscape(blockID)+"/status", body, &resp)
	return resp, err
}

// CreateTask creates a task, in a block or in the backlog.
func (c *Client) CreateTask(ctx context.Context, name, blockID, priority string) (Task, error) {
	body := map[string]any{
		"name":     name,
		"block_id": blockID,
		"priority": priority,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// Backlog lists the caller's unscheduled tasks.
func (c *Client) Backlog(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "v0/tasks?backlog=true", nil, &resp)
	return resp, err
}

// Events returns recent log entries, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/log"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

// Package backend is the HTTP client of the publishing backend: the draft
// queue, the result callback and capture ingestion.
package backend

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

	"github.com/ecociel/autopublish/domain"
)

const (
	pathQueue   = "/api/drafts/queue"
	pathClear   = "/api/drafts/queue/clear"
	pathResult  = "/api/publish/result"
	pathCapture = "/api/data/capture"
	pathStats   = "/v1/videos/stats"
)

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type queueResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Drafts  []domain.Draft `json:"drafts"`
}

// FetchQueue returns the pending drafts in backend order.
func (c *Client) FetchQueue(ctx context.Context) ([]domain.Draft, error) {
	var resp queueResponse
	if err := c.do(ctx, http.MethodGet, pathQueue, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch queue: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch queue: backend refused: %s", resp.Message)
	}
	return resp.Drafts, nil
}

func (c *Client) DeleteDraft(ctx context.Context, draftID string) error {
	if err := c.do(ctx, http.MethodDelete, pathQueue+"/"+url.PathEscape(draftID), nil, nil); err != nil {
		return fmt.Errorf("delete draft %s: %w", draftID, err)
	}
	return nil
}

func (c *Client) ClearQueue(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, pathClear, struct{}{}, nil); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

type enqueueRequest struct {
	Drafts    []domain.Draft `json:"drafts"`
	Timestamp time.Time      `json:"timestamp"`
}

// EnqueueDrafts hands newly discovered unpublished drafts to the backend
// queue. The backend deduplicates by draft id.
func (c *Client) EnqueueDrafts(ctx context.Context, drafts []domain.Draft) error {
	body := enqueueRequest{Drafts: drafts, Timestamp: c.now().UTC()}
	if err := c.do(ctx, http.MethodPost, pathQueue, body, nil); err != nil {
		return fmt.Errorf("enqueue %d drafts: %w", len(drafts), err)
	}
	return nil
}

func (c *Client) ReportResult(ctx context.Context, result domain.PublishResult) error {
	if err := c.do(ctx, http.MethodPost, pathResult, result, nil); err != nil {
		return fmt.Errorf("report result of %s: %w", result.DraftID, err)
	}
	return nil
}

func (c *Client) SendCapture(ctx context.Context, rec domain.ClassifiedRecord) error {
	if err := c.do(ctx, http.MethodPost, pathCapture, rec, nil); err != nil {
		return fmt.Errorf("send %s capture: %w", rec.Kind, err)
	}
	return nil
}

func (c *Client) SendStats(ctx context.Context, stats domain.Stats) error {
	if err := c.do(ctx, http.MethodPost, pathStats, stats, nil); err != nil {
		return fmt.Errorf("send stats: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

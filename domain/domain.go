package domain

import "time"

// DraftURLPrefix is where the web application serves a single draft.
const DraftURLPrefix = "https://sora.chatgpt.com/d/"

// Draft is a generated video that has not been published yet.
type Draft struct {
	DraftID      string `json:"draft_id"`
	GenerationID string `json:"generation_id,omitempty"`
	TaskID       string `json:"task_id,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	DraftURL     string `json:"draft_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// PublishSession is one attempt to publish a single draft. Only one
// exists at any time.
type PublishSession struct {
	ID        string
	Draft     Draft
	StartedAt time.Time
	Deadline  time.Time
}

// PublishResult is the terminal outcome of a PublishSession.
type PublishResult struct {
	DraftID      string    `json:"draft_id"`
	GenerationID string    `json:"generation_id,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	DraftURL     string    `json:"draft_url"`
	PublishedURL string    `json:"published_url,omitempty"`
	PostID       string    `json:"post_id,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewPublishResult(d Draft, at time.Time) PublishResult {
	return PublishResult{
		DraftID:      d.DraftID,
		GenerationID: d.GenerationID,
		TaskID:       d.TaskID,
		DraftURL:     d.DraftURL,
		Timestamp:    at,
	}
}

// Failed returns a copy of r marked as failed with msg.
func (r PublishResult) Failed(msg string) PublishResult {
	r.Success = false
	r.Error = msg
	r.PublishedURL = ""
	r.PostID = ""
	return r
}

type QueueState string

const (
	QueueIdle       QueueState = "idle"
	QueueProcessing QueueState = "processing"
)

type QueueStatus struct {
	State          QueueState `json:"state"`
	QueueLength    int        `json:"queueLength"`
	IsProcessing   bool       `json:"isProcessing"`
	CurrentDraft   *Draft     `json:"currentDraft,omitempty"`
	CurrentSession string     `json:"currentSession,omitempty"`
}

// OutboxEntry is a PublishResult waiting to be delivered to the backend.
type OutboxEntry struct {
	ID        int64
	Result    PublishResult
	Attempts  uint16
	LastError string
	Due       time.Time
}

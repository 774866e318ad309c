package domain

import "time"

// Headers attached to every event record on the stream.
const (
	HeaderKind       = "kind"
	HeaderCapturedAt = "captured_at"
	HeaderSource     = "source"
)

const (
	EventPublishResult = "publish_result"
	EventVideoStats    = "video_stats"
)

// Event is a record forwarded to the event stream. Kind is either a
// RecordKind or one of the Event* names above.
type Event struct {
	Kind    string
	Key     string
	Source  string
	Payload []byte
	At      time.Time
}

type CommandType string

const (
	CmdKeepAlive      CommandType = "KEEP_ALIVE"
	CmdGetQueueStatus CommandType = "GET_QUEUE_STATUS"
	CmdStartPublish   CommandType = "START_PUBLISH"
	CmdStopPublish    CommandType = "STOP_PUBLISH"
	CmdFetchQueue     CommandType = "FETCH_QUEUE"
)

type Command struct {
	Type CommandType `json:"type"`
}

type CommandResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
	QueueLength *int         `json:"queueLength,omitempty"`
	Status      *QueueStatus `json:"status,omitempty"`
}

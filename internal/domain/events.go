package domain

import "time"

type EventType string

const (
	EventStreamStarted     EventType = "stream_started"
	EventStreamFinished    EventType = "stream_finished"
	EventMaterializeStart  EventType = "materialize_started"
	EventMaterializeFinish EventType = "materialize_finished"
)

// Event is a lifecycle notification published to event subscribers.
type Event struct {
	Type      EventType `json:"type"`
	VideoID   VideoID   `json:"videoId"`
	SessionID string    `json:"sessionId,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

package domain

import "time"

// EventType identifies a run or node lifecycle event.
type EventType string

const (
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunFailed    EventType = "run.failed"
	EventTypeRunCancelled EventType = "run.cancelled"

	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeCompleted EventType = "node.completed"
	EventTypeNodeFailed    EventType = "node.failed"
	EventTypeNodeRetrying  EventType = "node.retrying"
	EventTypeNodeSkipped   EventType = "node.skipped"
)

// Event is published on the event bus at every run and node transition.
type Event struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	ExecutionID string                 `json:"execution_id"`
	NodeID      string                 `json:"node_id,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

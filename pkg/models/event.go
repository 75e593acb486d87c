package models

import "time"

// EventType enumerates the lifecycle stages the driver reports to
// subscribed plugins and loggers.
type EventType string

const (
	EventTurnStart         EventType = "turn_start"
	EventToolRequested     EventType = "tool_requested"
	EventToolDenied        EventType = "tool_denied"
	EventToolApproval      EventType = "tool_approval_required"
	EventToolStarted       EventType = "tool_started"
	EventToolSucceeded     EventType = "tool_succeeded"
	EventToolFailed        EventType = "tool_failed"
	EventGCRan             EventType = "gc_ran"
	EventSessionCheckpoint EventType = "session_checkpoint"
	EventTurnComplete      EventType = "turn_complete"
)

// AgentEvent is a point-in-time notification emitted by the driver at
// each loop transition. Plugins implementing the observer capability
// receive these; it is the runtime's only built-in observability hook.
type AgentEvent struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

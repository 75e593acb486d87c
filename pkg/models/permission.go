package models

import (
	"encoding/json"
	"time"
)

// PermissionDecision is the three-way outcome of evaluating a tool
// call against the policy engine.
type PermissionDecision string

const (
	DecisionAllow     PermissionDecision = "allow"
	DecisionDeny      PermissionDecision = "deny"
	DecisionAskActor  PermissionDecision = "ask"
)

// PolicyMatch carries a PermissionDecision plus the reasoning behind
// it, for audit logging.
type PolicyMatch struct {
	Decision    PermissionDecision `json:"decision"`
	Reason      string             `json:"reason"`
	MatchedRule string             `json:"matched_rule,omitempty"`
	RuleType    string             `json:"rule_type"` // session_blacklist | blacklist | session_whitelist | whitelist | default
}

// PermissionRequest is sent to an approval Channel when the policy
// engine cannot decide a tool call on its own.
type PermissionRequest struct {
	RequestID        string            `json:"request_id"`
	Timestamp        time.Time         `json:"timestamp"`
	ToolName         string            `json:"tool_name"`
	Arguments        json.RawMessage   `json:"arguments"`
	TimeoutSeconds   int               `json:"timeout_seconds"`
	DefaultOnTimeout PermissionDecision `json:"default_on_timeout"`
	Context          map[string]any    `json:"context,omitempty"`
}

// ChannelDecision is the channel-level response vocabulary: allow and
// deny as in PermissionDecision (but no "ask"), plus values that
// distinguish one-shot allows from session-remembered ones and a
// timeout.
type ChannelDecision string

const (
	ChannelAllow        ChannelDecision = "allow"
	ChannelDeny         ChannelDecision = "deny"
	ChannelAllowOnce    ChannelDecision = "allow_once"
	ChannelAllowSession ChannelDecision = "allow_session"
	ChannelDenySession  ChannelDecision = "deny_session"
	ChannelAllowAll     ChannelDecision = "allow_all"
	ChannelTimeout      ChannelDecision = "timeout"
)

// ChannelResponse is the channel's answer to a PermissionRequest.
type ChannelResponse struct {
	RequestID      string          `json:"request_id"`
	Decision       ChannelDecision `json:"decision"`
	Reason         string          `json:"reason,omitempty"`
	Remember       bool            `json:"remember,omitempty"`
	RememberPattern string         `json:"remember_pattern,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

// Allowed reports whether the response grants execution.
func (r ChannelResponse) Allowed() bool {
	switch r.Decision {
	case ChannelAllow, ChannelAllowOnce, ChannelAllowSession, ChannelAllowAll:
		return true
	default:
		return false
	}
}

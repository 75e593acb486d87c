// Package models defines the shared data types passed between the
// driver, registry, policy engine, garbage collector, and session
// store.
package models

import (
	"time"
)

// Role identifies who produced a Message. Role ∈ {user, model} — there
// is no separate system role; synthesized notices (GC summaries,
// shared command output) are carried as user-role messages instead.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// PartType tags the kind of content carried by a Part.
type PartType string

const (
	PartText         PartType = "text"
	PartToolCall     PartType = "tool_call"
	PartToolResponse PartType = "tool_response"
	PartInlineBlob   PartType = "inline_blob"
)

// Part is a tagged union of the four content kinds a Message can carry.
// Exactly one of the typed fields is populated, matching Type.
type Part struct {
	Type PartType `json:"type"`

	// Text holds the content when Type == PartText.
	Text string `json:"text,omitempty"`

	// ToolCall holds the content when Type == PartToolCall.
	ToolCall *ToolCallRequest `json:"tool_call,omitempty"`

	// ToolResponse holds the content when Type == PartToolResponse.
	ToolResponse *ToolResult `json:"tool_response,omitempty"`

	// InlineBlob holds the content when Type == PartInlineBlob.
	InlineBlob *InlineBlob `json:"inline_blob,omitempty"`
}

// InlineBlob carries non-text payload data (images, files) inline in a
// message part.
type InlineBlob struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
	Name     string `json:"name,omitempty"`
}

// NewTextPart builds a text Part.
func NewTextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// NewToolCallPart builds a tool_call Part.
func NewToolCallPart(call ToolCallRequest) Part {
	return Part{Type: PartToolCall, ToolCall: &call}
}

// NewToolResponsePart builds a tool_response Part.
func NewToolResponsePart(result ToolResult) Part {
	return Part{Type: PartToolResponse, ToolResponse: &result}
}

// Message is one turn-participant's contribution: a role plus an
// ordered list of parts. A single assistant Message may carry both
// text and one or more tool_call parts; a single user Message may
// carry one or more tool_response parts answering a prior assistant
// turn's tool calls.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// Text concatenates all text parts of the message, in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns the tool_call parts of the message, in order.
func (m Message) ToolCalls() []ToolCallRequest {
	var out []ToolCallRequest
	for _, p := range m.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

// ToolResponses returns the tool_response parts of the message, in order.
func (m Message) ToolResponses() []ToolResult {
	var out []ToolResult
	for _, p := range m.Parts {
		if p.Type == PartToolResponse && p.ToolResponse != nil {
			out = append(out, *p.ToolResponse)
		}
	}
	return out
}

// charLen returns the character footprint of a Message for token
// estimation purposes: the sum of its text, tool-call name and input,
// tool-response content, and inline-blob data lengths.
func (m Message) charLen() int {
	n := 0
	for _, p := range m.Parts {
		switch p.Type {
		case PartText:
			n += len(p.Text)
		case PartToolCall:
			if p.ToolCall != nil {
				n += len(p.ToolCall.Name) + len(p.ToolCall.Input)
			}
		case PartToolResponse:
			if p.ToolResponse != nil {
				n += len(p.ToolResponse.Content)
			}
		case PartInlineBlob:
			if p.InlineBlob != nil {
				n += len(p.InlineBlob.Data)
			}
		}
	}
	return n
}

// CharLen exposes charLen for packages (gc) that need the raw
// character footprint without duplicating the switch above.
func (m Message) CharLen() int { return m.charLen() }

// Turn groups one user message with the assistant/tool exchange that
// answers it: a single inbound Message followed by zero or more
// assistant Messages (text and/or tool calls) and their tool-response
// Messages, ending when the next user Message begins.
type Turn struct {
	Index    int       `json:"index"`
	Messages []Message `json:"messages"`
}

// IsEmpty reports whether the turn carries no messages.
func (t Turn) IsEmpty() bool { return len(t.Messages) == 0 }

// ConversationHistory is the ordered sequence of turns that make up a
// session's context.
type ConversationHistory struct {
	Turns []Turn `json:"turns"`
}

// Flatten returns all messages across all turns, in order.
func (h ConversationHistory) Flatten() []Message {
	var out []Message
	for _, t := range h.Turns {
		out = append(out, t.Messages...)
	}
	return out
}

// SplitIntoTurns groups a flat message slice into Turns: a new turn
// starts on each user Message that does not itself consist solely of
// tool_response parts (a tool-response-only user message is the
// continuation of the turn it's answering, not a new one).
func SplitIntoTurns(messages []Message) []Turn {
	var turns []Turn
	var current []Message
	idx := 0

	isContinuation := func(m Message) bool {
		if m.Role != RoleUser || len(m.Parts) == 0 {
			return false
		}
		for _, p := range m.Parts {
			if p.Type != PartToolResponse {
				return false
			}
		}
		return true
	}

	for _, m := range messages {
		if m.Role == RoleUser && !isContinuation(m) && len(current) > 0 {
			turns = append(turns, Turn{Index: idx, Messages: current})
			idx++
			current = nil
		}
		current = append(current, m)
	}
	if len(current) > 0 {
		turns = append(turns, Turn{Index: idx, Messages: current})
	}
	return turns
}

// FlattenTurns is the inverse of SplitIntoTurns.
func FlattenTurns(turns []Turn) []Message {
	var out []Message
	for _, t := range turns {
		out = append(out, t.Messages...)
	}
	return out
}

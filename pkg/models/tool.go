package models

import (
	"encoding/json"
	"fmt"
)

// ToolSchema describes a callable tool as exposed to the model: its
// name, a human-readable description, and a JSON-schema parameter
// descriptor. The descriptor is intentionally opaque here — validating
// arguments against it is a concern of the tool implementation, not
// the driver or registry.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCallRequest is the model's request to invoke one tool.
type ToolCallRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is the outcome of executing one ToolCallRequest: either a
// normal text/JSON payload carried in Content, or, when Multimodal is
// set, inline binary data the model can interpret natively.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`

	// Multimodal marks this result as the multimodal(mime, bytes,
	// descriptor_map) variant: Parts builds a tool_response that
	// references DisplayName plus a sibling inline_blob part carrying
	// Data, instead of folding the bytes into Content.
	Multimodal  bool           `json:"multimodal,omitempty"`
	MimeType    string         `json:"mime_type,omitempty"`
	Data        []byte         `json:"data,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Descriptors map[string]any `json:"descriptors,omitempty"`
}

// NewMultimodalToolResult builds the multimodal ToolResult variant:
// mime/bytes plus a descriptor map describing the blob (e.g.
// width/height), referenced by displayName in the structured
// tool_response part Parts produces.
func NewMultimodalToolResult(toolCallID, displayName, mimeType string, data []byte, descriptors map[string]any) ToolResult {
	return ToolResult{
		ToolCallID:  toolCallID,
		Multimodal:  true,
		MimeType:    mimeType,
		Data:        data,
		DisplayName: displayName,
		Descriptors: descriptors,
	}
}

// Parts converts a ToolResult into the Message Part(s) it becomes in a
// tool-response continuation: a normal result is a single tool_response
// part; a multimodal result becomes a tool_response part that
// references the blob by display name, plus a sibling inline_blob part
// carrying the bytes.
func (r ToolResult) Parts() []Part {
	if !r.Multimodal {
		return []Part{NewToolResponsePart(r)}
	}
	ref := ToolResult{
		ToolCallID: r.ToolCallID,
		Content:    fmt.Sprintf("see attached %q (%s)", r.DisplayName, r.MimeType),
		IsError:    r.IsError,
	}
	blob := InlineBlob{MimeType: r.MimeType, Data: r.Data, Name: r.DisplayName}
	return []Part{NewToolResponsePart(ref), {Type: PartInlineBlob, InlineBlob: &blob}}
}

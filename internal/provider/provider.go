// Package provider defines the model provider interface the driver
// calls to produce assistant turns. This module ships no concrete
// provider implementation, only the abstract contract and an
// in-memory fake used by tests.
package provider

import (
	"context"

	"github.com/driftloom/loomcore/pkg/models"
)

// CompletionRequest bundles everything a provider needs to produce the
// next assistant message: the running history, the available tool
// schemas, and a system prompt.
type CompletionRequest struct {
	System   string
	History  models.ConversationHistory
	Tools    []models.ToolSchema
	MaxTokens int
}

// CompletionResponse is one assistant turn: text and/or tool calls.
type CompletionResponse struct {
	Message models.Message
}

// Provider is the model provider interface the driver depends on.
//
// Implementations must be safe for concurrent use only insofar as the
// driver never calls SendMessage concurrently for the same session —
// the driver's per-session lock guarantees that, so a Provider may
// keep per-call state without its own locking.
type Provider interface {
	// Name identifies the provider, e.g. for logging and the
	// context-limit table lookup.
	Name() string

	// SendMessage produces the next assistant Message given req.
	SendMessage(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// CountTokens estimates the token cost of a slice of messages
	// using the provider's own tokenizer, when available; providers
	// that have none may delegate to gc.EstimateMessagesTokens.
	CountTokens(messages []models.Message) int

	// Reset clears any per-connection state the provider holds (e.g.
	// a streaming session) without affecting stored history.
	Reset()
}

// ContextWindowTokens is the canonical per-model context-limit table,
// consulted via a resolve-with-fallback chain when a model name isn't
// listed.
var ContextWindowTokens = map[string]int{
	"fake-small":  8_000,
	"fake-medium": 32_000,
	"fake-large":  128_000,
}

// DefaultContextWindow is used when a model name has no table entry.
const DefaultContextWindow = 100_000

// ResolveContextWindow looks up a model's context window, falling
// back to DefaultContextWindow when unknown.
func ResolveContextWindow(model string) int {
	if n, ok := ContextWindowTokens[model]; ok {
		return n
	}
	return DefaultContextWindow
}

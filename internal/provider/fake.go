package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/driftloom/loomcore/pkg/models"
	"github.com/driftloom/loomcore/internal/gc"
)

// Fake is a scriptable Provider used by driver tests: each call to
// SendMessage pops the next queued CompletionResponse (or Responder
// call), so tests can script exact tool-call/response sequences
// without a real model.
type Fake struct {
	ModelName string
	Responses []CompletionResponse
	Responder func(req CompletionRequest) (CompletionResponse, error)

	calls int
}

func (f *Fake) Name() string {
	if f.ModelName != "" {
		return f.ModelName
	}
	return "fake"
}

func (f *Fake) SendMessage(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	defer func() { f.calls++ }()

	if f.Responder != nil {
		return f.Responder(req)
	}
	if f.calls < len(f.Responses) {
		return f.Responses[f.calls], nil
	}
	return CompletionResponse{Message: models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Parts:     []models.Part{models.NewTextPart("")},
		CreatedAt: time.Now(),
	}}, nil
}

func (f *Fake) CountTokens(messages []models.Message) int {
	return gc.EstimateMessagesTokens(messages)
}

func (f *Fake) Reset() { f.calls = 0 }

// Calls reports how many times SendMessage has been invoked.
func (f *Fake) Calls() int { return f.calls }

// Package session implements the session store: persistence and
// lifecycle hooks for models.SessionState across process restarts.
package session

import (
	"context"

	"github.com/driftloom/loomcore/pkg/models"
)

// Store is the interface for session persistence.
type Store interface {
	Create(ctx context.Context, s *models.SessionState) error
	Get(ctx context.Context, id string) (*models.SessionState, error)
	Update(ctx context.Context, s *models.SessionState) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.SessionState, error)
}

// Hooks are the lifecycle callbacks the driver invokes as a session
// progresses.
type Hooks struct {
	OnSessionStart  func(ctx context.Context, s *models.SessionState)
	OnTurnComplete  func(ctx context.Context, s *models.SessionState, turn models.Turn)
	OnSessionEnd    func(ctx context.Context, s *models.SessionState)
}

// FireStart invokes OnSessionStart if set.
func (h Hooks) FireStart(ctx context.Context, s *models.SessionState) {
	if h.OnSessionStart != nil {
		h.OnSessionStart(ctx, s)
	}
}

// FireTurnComplete invokes OnTurnComplete if set.
func (h Hooks) FireTurnComplete(ctx context.Context, s *models.SessionState, turn models.Turn) {
	if h.OnTurnComplete != nil {
		h.OnTurnComplete(ctx, s, turn)
	}
}

// FireEnd invokes OnSessionEnd if set.
func (h Hooks) FireEnd(ctx context.Context, s *models.SessionState) {
	if h.OnSessionEnd != nil {
		h.OnSessionEnd(ctx, s)
	}
}

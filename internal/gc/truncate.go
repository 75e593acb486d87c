package gc

import (
	"context"
	"fmt"

	"github.com/driftloom/loomcore/pkg/models"
)

// Truncation is the simplest strategy: drop the oldest turns beyond
// the preservation window, with no summarization. Grounded on
// original_source/shared/plugins/gc_truncate/plugin.py.
type Truncation struct {
	// NotifyOnGC, when true, prepends a user-role notice describing what
	// was dropped after each collection.
	NotifyOnGC bool
}

func (t *Truncation) Name() string { return "truncate" }

func (t *Truncation) ShouldCollect(usage Usage, cfg Config) (bool, TriggerReason) {
	if !cfg.AutoTrigger {
		return false, ""
	}
	if usage.PercentUsed() >= cfg.ThresholdPercent {
		return true, TriggerThreshold
	}
	if cfg.MaxTurns > 0 && usage.Turns >= cfg.MaxTurns {
		return true, TriggerTurnLimit
	}
	return false, ""
}

func (t *Truncation) Collect(_ context.Context, history models.ConversationHistory, _ Usage, cfg Config, reason TriggerReason) (models.ConversationHistory, Result, error) {
	tokensBefore := EstimateHistoryTokens(history)
	totalTurns := len(history.Turns)

	preserved := PreservedIndices(totalTurns, cfg.PreserveRecentTurns, cfg.PinnedTurnIndices)
	if len(preserved) >= totalTurns {
		return history, Result{
			Success:       true,
			TokensBefore:  tokensBefore,
			TokensAfter:   tokensBefore,
			StrategyName:  t.Name(),
			TriggerReason: reason,
			Details:       map[string]any{"message": "all turns preserved, nothing to collect"},
		}, nil
	}

	var kept []models.Turn
	removed := 0
	for _, turn := range history.Turns {
		if _, ok := preserved[turn.Index]; ok {
			kept = append(kept, turn)
		} else {
			removed++
		}
	}

	newHistory := models.ConversationHistory{Turns: kept}
	tokensAfter := EstimateHistoryTokens(newHistory)

	result := Result{
		Success:        true,
		ItemsCollected: removed,
		TokensBefore:   tokensBefore,
		TokensAfter:    tokensAfter,
		StrategyName:   t.Name(),
		TriggerReason:  reason,
		Details: map[string]any{
			"turns_before":  totalTurns,
			"turns_after":   len(kept),
			"preserve_count": cfg.PreserveRecentTurns,
		},
	}

	if t.NotifyOnGC {
		notice := fmt.Sprintf("context cleaned: removed %d old turns, kept %d recent turns (%d tokens freed)",
			removed, len(kept), tokensBefore-tokensAfter)
		result.Notification = notice
		newHistory.Turns = append([]models.Turn{{Index: -1, Messages: []models.Message{newUserNotice("[" + notice + "]")}}}, newHistory.Turns...)
	}

	return newHistory, result, nil
}

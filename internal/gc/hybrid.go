package gc

import (
	"context"

	"github.com/driftloom/loomcore/pkg/models"
)

// GenerationalHybrid treats history like a two-generation heap: a
// "young" generation of the most recent turns is left untouched, a
// "middle" generation just older than that is summarized (cheap, one
// pass), and anything older than both is truncated outright. This
// mirrors how a generational GC spends more effort on the data most
// likely to still matter, least effort on data unlikely to be
// referenced again.
type GenerationalHybrid struct {
	Summarizer Summarizer

	// YoungTurns is the number of most-recent turns kept verbatim.
	YoungTurns int
	// MiddleTurns is the number of turns, just older than YoungTurns,
	// that get summarized rather than dropped outright. When no summary
	// can be produced (no Summarizer, or it fails), they are dropped
	// along with the older turns, leaving only the young generation.
	MiddleTurns int

	MaxChunkTokens int
}

func (h *GenerationalHybrid) Name() string { return "generational_hybrid" }

func (h *GenerationalHybrid) ShouldCollect(usage Usage, cfg Config) (bool, TriggerReason) {
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

func (h *GenerationalHybrid) Collect(ctx context.Context, history models.ConversationHistory, usage Usage, cfg Config, reason TriggerReason) (models.ConversationHistory, Result, error) {
	tokensBefore := EstimateHistoryTokens(history)
	totalTurns := len(history.Turns)

	young := h.YoungTurns
	if young <= 0 {
		young = cfg.PreserveRecentTurns
	}
	middle := h.MiddleTurns

	youngStart := totalTurns - young
	if youngStart < 0 {
		youngStart = 0
	}
	middleStart := youngStart - middle
	if middleStart < 0 {
		middleStart = 0
	}

	var oldTurns, middleTurns, youngTurnsSlice []models.Turn
	for i, turn := range history.Turns {
		switch {
		case i >= youngStart:
			youngTurnsSlice = append(youngTurnsSlice, turn)
		case i >= middleStart:
			middleTurns = append(middleTurns, turn)
		default:
			oldTurns = append(oldTurns, turn)
		}
	}

	if len(oldTurns) == 0 && len(middleTurns) == 0 {
		return history, Result{
			Success:       true,
			TokensBefore:  tokensBefore,
			TokensAfter:   tokensBefore,
			StrategyName:  h.Name(),
			TriggerReason: reason,
			Details:       map[string]any{"message": "nothing old enough to collect"},
		}, nil
	}

	var newTurns []models.Turn
	dropped, summarized := len(oldTurns), 0

	if len(middleTurns) > 0 {
		summarizer := &Summarization{Summarizer: h.Summarizer, MaxChunkTokens: h.MaxChunkTokens}
		middleHistory := models.ConversationHistory{Turns: middleTurns}
		summarizedHistory, sumResult, err := summarizer.Collect(ctx, middleHistory, usage, Config{PreserveRecentTurns: 0}, reason)
		if err != nil {
			return history, Result{}, err
		}
		if sumResult.Success {
			newTurns = append(newTurns, summarizedHistory.Turns...)
			summarized = len(middleTurns)
		} else {
			dropped += len(middleTurns)
		}
	}

	newTurns = append(newTurns, youngTurnsSlice...)
	newHistory := models.ConversationHistory{Turns: newTurns}
	tokensAfter := EstimateHistoryTokens(newHistory)

	return newHistory, Result{
		Success:        true,
		ItemsCollected: len(oldTurns) + len(middleTurns),
		TokensBefore:   tokensBefore,
		TokensAfter:    tokensAfter,
		StrategyName:   h.Name(),
		TriggerReason:  reason,
		Details: map[string]any{
			"dropped_turns":     dropped,
			"summarized_turns":  summarized,
			"preserved_turns":   len(youngTurnsSlice),
		},
	}, nil
}

package gc

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftloom/loomcore/pkg/models"
)

// Summarizer generates a natural-language summary of a slice of
// messages. Implementations typically call out to a model provider;
// this package ships no concrete implementation.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.Message, previousSummary string) (string, error)
}

// defaultMaxChunkTokens is the Summarization.MaxChunkTokens used when
// that field is unset: it bounds how many estimated tokens one
// summarization call is handed at a time; oversized histories are
// chunked and the per-chunk summaries merged.
const defaultMaxChunkTokens = 3000

// Summarization collects by replacing the oldest, non-preserved turns
// with a single generated summary message, keeping the preserved
// (usually most-recent) turns verbatim.
type Summarization struct {
	Summarizer    Summarizer
	MaxChunkTokens int
}

func (s *Summarization) Name() string { return "summarize" }

func (s *Summarization) ShouldCollect(usage Usage, cfg Config) (bool, TriggerReason) {
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

func (s *Summarization) Collect(ctx context.Context, history models.ConversationHistory, _ Usage, cfg Config, reason TriggerReason) (models.ConversationHistory, Result, error) {
	tokensBefore := EstimateHistoryTokens(history)
	totalTurns := len(history.Turns)
	preserved := PreservedIndices(totalTurns, cfg.PreserveRecentTurns, cfg.PinnedTurnIndices)

	var toSummarize, toKeep []models.Turn
	for _, turn := range history.Turns {
		if _, ok := preserved[turn.Index]; ok {
			toKeep = append(toKeep, turn)
		} else {
			toSummarize = append(toSummarize, turn)
		}
	}

	if len(toSummarize) == 0 {
		return history, Result{
			Success:       true,
			TokensBefore:  tokensBefore,
			TokensAfter:   tokensBefore,
			StrategyName:  s.Name(),
			TriggerReason: reason,
			Details:       map[string]any{"message": "all turns preserved, nothing to collect"},
		}, nil
	}

	if s.Summarizer == nil {
		return history, Result{
			Success:       false,
			TokensBefore:  tokensBefore,
			TokensAfter:   tokensBefore,
			StrategyName:  s.Name(),
			TriggerReason: reason,
			Details:       map[string]any{"message": "no summarizer configured"},
		}, nil
	}

	maxChunk := s.MaxChunkTokens
	if maxChunk <= 0 {
		maxChunk = defaultMaxChunkTokens
	}

	messages := models.FlattenTurns(toSummarize)
	chunks := chunkByMaxTokens(messages, maxChunk)

	summary, err := s.summarizeChunks(ctx, chunks)
	if err != nil {
		return history, Result{
			Success:       false,
			TokensBefore:  tokensBefore,
			TokensAfter:   tokensBefore,
			StrategyName:  s.Name(),
			TriggerReason: reason,
			Details:       map[string]any{"message": err.Error()},
		}, nil
	}

	summaryTurn := models.Turn{
		Index: -1,
		Messages: []models.Message{{
			Role:  models.RoleUser,
			Parts: []models.Part{models.NewTextPart(formatSummary(summary))},
		}},
	}

	newHistory := models.ConversationHistory{Turns: append([]models.Turn{summaryTurn}, toKeep...)}
	tokensAfter := EstimateHistoryTokens(newHistory)

	return newHistory, Result{
		Success:        true,
		ItemsCollected: len(toSummarize),
		TokensBefore:   tokensBefore,
		TokensAfter:    tokensAfter,
		StrategyName:   s.Name(),
		TriggerReason:  reason,
		Details: map[string]any{
			"turns_summarized": len(toSummarize),
			"turns_kept":       len(toKeep),
			"chunks":           len(chunks),
		},
	}, nil
}

// summarizeChunks summarizes each chunk independently, then merges
// per-chunk summaries into one when there's more than one.
func (s *Summarization) summarizeChunks(ctx context.Context, chunks [][]models.Message) (string, error) {
	if len(chunks) == 0 {
		return "", nil
	}

	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := s.Summarizer.Summarize(ctx, chunk, "")
		if err != nil {
			return "", err
		}
		summaries = append(summaries, out)
	}

	if len(summaries) == 1 {
		return summaries[0], nil
	}

	var merged []models.Message
	for i, sum := range summaries {
		merged = append(merged, models.Message{
			Role:  models.RoleUser,
			Parts: []models.Part{models.NewTextPart(fmt.Sprintf("Chunk %d summary:\n%s", i+1, sum))},
		})
	}
	return s.Summarizer.Summarize(ctx, merged, "")
}

func chunkByMaxTokens(messages []models.Message, maxTokens int) [][]models.Message {
	var chunks [][]models.Message
	var current []models.Message
	currentTokens := 0

	for _, m := range messages {
		tokens := EstimateMessageTokens(m)
		if tokens > maxTokens {
			if len(current) > 0 {
				chunks = append(chunks, current)
				current = nil
				currentTokens = 0
			}
			chunks = append(chunks, []models.Message{m})
			continue
		}
		if currentTokens+tokens > maxTokens && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, m)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func formatSummary(summary string) string {
	var b strings.Builder
	b.WriteString("[Context Summary - Previous conversation compressed]\n")
	b.WriteString(summary)
	b.WriteString("\n[End Context Summary]")
	return b.String()
}

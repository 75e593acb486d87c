// Package gc implements the context garbage collection strategies
// that keep a session's conversation history within its model's token
// budget: truncation, summarization, and a generational hybrid of the
// two.
package gc

import (
	"context"

	"github.com/driftloom/loomcore/pkg/models"
)

// CharsPerToken is the canonical, deliberately-approximate conversion
// factor used everywhere a token count is estimated from character
// length in this module: estimated tokens = max(1, chars / CharsPerToken).
const CharsPerToken = 4

// TriggerReason records why a collection was triggered.
type TriggerReason string

const (
	TriggerThreshold TriggerReason = "threshold"
	TriggerTurnLimit TriggerReason = "turn_limit"
	TriggerManual    TriggerReason = "manual"
)

// Config parameterizes a Strategy's triggering and preservation
// behavior. AutoTrigger/ThresholdPercent/MaxTurns/PreserveRecentTurns
// map directly onto the reference implementation's GCConfig.
type Config struct {
	AutoTrigger          bool
	ThresholdPercent     float64
	MaxTurns             int // 0 means unbounded
	PreserveRecentTurns  int
	PinnedTurnIndices    []int
	ContextWindowTokens  int
}

// Usage is a point-in-time snapshot of context window consumption,
// computed by the driver before each model call.
type Usage struct {
	EstimatedTokens int
	ContextWindow   int
	Turns           int
}

// PercentUsed returns EstimatedTokens as a percentage of ContextWindow,
// or 0 if ContextWindow is unset.
func (u Usage) PercentUsed() float64 {
	if u.ContextWindow <= 0 {
		return 0
	}
	return float64(u.EstimatedTokens) * 100 / float64(u.ContextWindow)
}

// Result reports the outcome of a Collect call: how many turns were
// removed/summarized and the before/after token estimates, for audit
// logging and the token-estimate-monotonicity testable property
// (collecting must never increase the estimate).
type Result struct {
	Success        bool
	ItemsCollected int
	TokensBefore   int
	TokensAfter    int
	StrategyName   string
	TriggerReason  TriggerReason
	Notification   string
	Details        map[string]any
}

// Strategy is the pluggable contract every GC implementation
// satisfies: decide whether to collect, then perform the collection.
// Summarizing strategies take a context.Context because they may call
// out to a model provider to generate summaries.
type Strategy interface {
	Name() string
	ShouldCollect(usage Usage, cfg Config) (bool, TriggerReason)
	Collect(ctx context.Context, history models.ConversationHistory, usage Usage, cfg Config, reason TriggerReason) (models.ConversationHistory, Result, error)
}

// EstimateMessageTokens applies the canonical estimator to a single
// message: the floor-clamped character-count-over-four heuristic
// (never zero, so an empty message still "costs" one token).
func EstimateMessageTokens(m models.Message) int {
	n := m.CharLen() / CharsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateMessagesTokens sums EstimateMessageTokens over a slice.
func EstimateMessagesTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// EstimateTurnTokens sums EstimateMessagesTokens over one turn's
// messages.
func EstimateTurnTokens(t models.Turn) int {
	return EstimateMessagesTokens(t.Messages)
}

// EstimateHistoryTokens sums EstimateTurnTokens over a whole history.
func EstimateHistoryTokens(h models.ConversationHistory) int {
	total := 0
	for _, t := range h.Turns {
		total += EstimateTurnTokens(t)
	}
	return total
}

// PreservedIndices computes the set of turn indices that must survive
// a collection: the most recent preserveRecent turns, plus any
// explicitly pinned indices.
func PreservedIndices(totalTurns, preserveRecent int, pinned []int) map[int]struct{} {
	preserved := make(map[int]struct{})
	if preserveRecent > 0 {
		start := totalTurns - preserveRecent
		if start < 0 {
			start = 0
		}
		for i := start; i < totalTurns; i++ {
			preserved[i] = struct{}{}
		}
	}
	for _, idx := range pinned {
		if idx >= 0 && idx < totalTurns {
			preserved[idx] = struct{}{}
		}
	}
	return preserved
}

// newUserNotice wraps a synthesized GC notification as a user-role
// message — there is no separate system role in the data model.
func newUserNotice(text string) models.Message {
	return models.Message{Role: models.RoleUser, Parts: []models.Part{models.NewTextPart(text)}}
}

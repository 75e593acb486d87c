package gc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftloom/loomcore/pkg/models"
)

func textMessage(role models.Role, text string) models.Message {
	return models.Message{Role: role, Parts: []models.Part{models.NewTextPart(text)}}
}

func buildHistory(turnCount int) models.ConversationHistory {
	messages := make([]models.Message, 0, turnCount*2)
	for i := 0; i < turnCount; i++ {
		messages = append(messages, textMessage(models.RoleUser, "question number with some padding text"))
		messages = append(messages, textMessage(models.RoleModel, "answer number with some padding text too"))
	}
	return models.ConversationHistory{Turns: models.SplitIntoTurns(messages)}
}

func TestSplitAndFlattenTurns_RoundTrip(t *testing.T) {
	messages := []models.Message{
		textMessage(models.RoleUser, "hi"),
		textMessage(models.RoleModel, "hello"),
		{Role: models.RoleUser, Parts: []models.Part{models.NewToolResponsePart(models.ToolResult{ToolCallID: "1", Content: "ok"})}},
		textMessage(models.RoleModel, "done"),
		textMessage(models.RoleUser, "next question"),
		textMessage(models.RoleModel, "next answer"),
	}

	turns := models.SplitIntoTurns(messages)
	require.Len(t, turns, 2)
	assert.Equal(t, messages, models.FlattenTurns(turns))
}

func TestEstimateMessageTokens_FloorClampedAtOne(t *testing.T) {
	empty := models.Message{}
	assert.Equal(t, 1, EstimateMessageTokens(empty))

	longMsg := textMessage(models.RoleUser, make1000Chars())
	assert.Equal(t, 250, EstimateMessageTokens(longMsg))
}

func make1000Chars() string {
	b := make([]byte, 1000)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestTruncation_PreservesRecentTurns(t *testing.T) {
	history := buildHistory(10)
	strategy := &Truncation{}

	newHistory, result, err := strategy.Collect(context.Background(), history, Usage{}, Config{PreserveRecentTurns: 3}, TriggerThreshold)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, newHistory.Turns, 3)

	// The preserved turns must be the last three, in original order.
	assert.Equal(t, history.Turns[7].Index, newHistory.Turns[0].Index)
	assert.Equal(t, history.Turns[9].Index, newHistory.Turns[2].Index)
}

func TestTruncation_TokenEstimateMonotonicity(t *testing.T) {
	history := buildHistory(10)
	strategy := &Truncation{}

	_, result, err := strategy.Collect(context.Background(), history, Usage{}, Config{PreserveRecentTurns: 2}, TriggerThreshold)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.TokensAfter, result.TokensBefore)
}

func TestTruncation_ShouldCollect_ThresholdAndTurnLimit(t *testing.T) {
	strategy := &Truncation{}

	ok, reason := strategy.ShouldCollect(Usage{EstimatedTokens: 90, ContextWindow: 100}, Config{AutoTrigger: true, ThresholdPercent: 80})
	assert.True(t, ok)
	assert.Equal(t, TriggerThreshold, reason)

	ok, reason = strategy.ShouldCollect(Usage{Turns: 20}, Config{AutoTrigger: true, ThresholdPercent: 80, MaxTurns: 15})
	assert.True(t, ok)
	assert.Equal(t, TriggerTurnLimit, reason)

	ok, _ = strategy.ShouldCollect(Usage{}, Config{AutoTrigger: false})
	assert.False(t, ok)
}

type stubSummarizer struct{ calls int }

func (s *stubSummarizer) Summarize(_ context.Context, messages []models.Message, _ string) (string, error) {
	s.calls++
	return "summary covering " + string(rune('0'+len(messages))) + " messages", nil
}

func TestSummarization_ReplacesOldTurnsWithSummary(t *testing.T) {
	history := buildHistory(8)
	stub := &stubSummarizer{}
	strategy := &Summarization{Summarizer: stub}

	newHistory, result, err := strategy.Collect(context.Background(), history, Usage{}, Config{PreserveRecentTurns: 2}, TriggerThreshold)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.ItemsCollected)
	assert.Greater(t, stub.calls, 0)
	// summary turn + 2 preserved turns
	assert.Len(t, newHistory.Turns, 3)
}

func TestSummarization_NoSummarizerConfiguredFailsClosed(t *testing.T) {
	history := buildHistory(8)
	strategy := &Summarization{}

	newHistory, result, err := strategy.Collect(context.Background(), history, Usage{}, Config{PreserveRecentTurns: 2}, TriggerThreshold)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, history, newHistory)
}

func TestGenerationalHybrid_DropsOldSummarizesMiddleKeepsYoung(t *testing.T) {
	history := buildHistory(10)
	stub := &stubSummarizer{}
	strategy := &GenerationalHybrid{Summarizer: stub, YoungTurns: 2, MiddleTurns: 3}

	newHistory, result, err := strategy.Collect(context.Background(), history, Usage{}, Config{}, TriggerThreshold)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 8, result.ItemsCollected) // 5 old dropped + 3 middle summarized
	// one summary turn + 2 young turns
	assert.Len(t, newHistory.Turns, 3)
}

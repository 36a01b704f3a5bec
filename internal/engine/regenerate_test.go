package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardforge/internal/domain"
)

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func completedAggregate(t *testing.T, eng *Engine, jobID string) domain.AggregateState {
	t.Helper()
	agg, err := eng.Run(context.Background(), jobID, testSpec(t), newRecordingSink())
	require.NoError(t, err)
	return agg
}

func TestRegenerateStageReplacesOneEntry(t *testing.T) {
	eng := syntheticEngine(t, nil)
	agg := completedAggregate(t, eng, "job-regen-stage")

	raw, err := eng.RegenerateStage(context.Background(), "job-regen-stage", testSpec(t), agg.Clone(), domain.StageQAReport)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	// The frozen aggregate handed in must stay untouched; the caller swaps.
	assert.True(t, agg.Has(domain.StageQAReport))
}

func TestRegenerateStageRejectsGameDesign(t *testing.T) {
	eng := syntheticEngine(t, nil)
	agg := completedAggregate(t, eng, "job-regen-design")

	_, err := eng.RegenerateStage(context.Background(), "job-regen-design", testSpec(t), agg, domain.StageGameDesign)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegenerateStageRejectsUnknownStage(t *testing.T) {
	eng := syntheticEngine(t, nil)
	_, err := eng.RegenerateStage(context.Background(), "job-x", testSpec(t), domain.AggregateState{}, "mystery")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegenerateCardReplacesDesignAndArtwork(t *testing.T) {
	eng := syntheticEngine(t, nil)
	agg := completedAggregate(t, eng, "job-regen-card")

	design, err := agg.Design()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(design.StarterCards), 2)
	target := design.StarterCards[1]

	result, err := eng.RegenerateCard(context.Background(), "job-regen-card", testSpec(t), agg.Clone(), target.Name)
	require.NoError(t, err)

	revised := domain.AggregateState{domain.StageGameDesign: result.Design}
	revisedDesign, err := revised.Design()
	require.NoError(t, err)
	idx := revisedDesign.CardIndex(target.Name)
	require.GreaterOrEqual(t, idx, 0, "regenerated card must keep its name")
	assert.NotEqual(t, target.Type, revisedDesign.StarterCards[idx].Type, "regenerated card should differ from the original")
	assert.Len(t, revisedDesign.StarterCards, len(design.StarterCards), "card count must not change")

	revised[domain.StageCardArtwork] = result.Artwork
	artwork, err := revised.Artwork()
	require.NoError(t, err)
	assert.Contains(t, artwork.Cards, target.Name)

	// The final balance of a complete run has no suggestions, so a card
	// regeneration leaves the balance entry untouched.
	assert.Nil(t, result.Balance)
}

func TestRegenerateCardDropsStaleBalanceSuggestions(t *testing.T) {
	eng := syntheticEngine(t, nil)
	agg := completedAggregate(t, eng, "job-regen-balance")

	design, err := agg.Design()
	require.NoError(t, err)
	target := design.StarterCards[0]

	// Plant a suggestion naming the target card so the regeneration must
	// rewrite the balance entry.
	staleBalance := domain.BalanceAnalysis{
		Analysis: "One lingering outlier.",
		SuggestedCardChanges: []domain.CardChange{
			{CardName: target.Name, SuggestedChange: "Raise the cost.", Reasoning: "Too efficient."},
			{CardName: "Unrelated Card", SuggestedChange: "Lower the cost.", Reasoning: "Too weak."},
		},
	}
	raw := mustMarshal(t, staleBalance)
	agg[domain.StageBalance] = raw

	result, err := eng.RegenerateCard(context.Background(), "job-regen-balance", testSpec(t), agg, target.Name)
	require.NoError(t, err)
	require.NotNil(t, result.Balance)
	assert.False(t, bytes.Equal(raw, result.Balance))

	revised := domain.AggregateState{domain.StageBalance: result.Balance}
	balance, err := revised.Balance()
	require.NoError(t, err)
	require.Len(t, balance.SuggestedCardChanges, 1)
	assert.Equal(t, "Unrelated Card", balance.SuggestedCardChanges[0].CardName)
}

func TestRegenerateCardUnknownName(t *testing.T) {
	eng := syntheticEngine(t, nil)
	agg := completedAggregate(t, eng, "job-regen-missing")

	_, err := eng.RegenerateCard(context.Background(), "job-regen-missing", testSpec(t), agg, "No Such Card")
	require.ErrorIs(t, err, domain.ErrValidation)
}

package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardforge/internal/domain"
)

func TestPipelineDependenciesAreMergeable(t *testing.T) {
	// Every dependency must be declared earlier in the pipeline, so a run
	// that merges in declaration order never blocks.
	seen := map[string]bool{}
	for _, st := range Stages() {
		for _, dep := range st.DependsOn {
			assert.True(t, seen[dep], "stage %s depends on %s which is not declared before it", st.Name, dep)
		}
		seen[st.Name] = true
	}
}

func TestRequiredStagesCoverPipeline(t *testing.T) {
	assert.Len(t, RequiredStages(), len(Stages()))
}

func TestGameDesignNotRerunnableInIsolation(t *testing.T) {
	st, ok := StageByName(domain.StageGameDesign)
	require.True(t, ok)
	assert.False(t, st.Rerunnable)

	qa, ok := StageByName(domain.StageQAReport)
	require.True(t, ok)
	assert.True(t, qa.Rerunnable)
}

func TestDesignPromptCarriesFeedback(t *testing.T) {
	st, ok := StageByName(domain.StageGameDesign)
	require.True(t, ok)

	designRaw, err := json.Marshal(domain.GameDesign{
		GameName:      "Sunken Empires",
		Concept:       "Race to raise drowned cities.",
		CoreMechanics: []string{"Hand Management"},
		WinCondition:  "Raise three cities.",
		GameFlow:      "Draw, play, discard.",
		StarterCards:  []domain.Card{{Name: "Pearl Diver", Type: "Creature", Cost: "1 Energy", Text: "Draw a card."}},
	})
	require.NoError(t, err)

	prompt, err := st.Prompt(PromptInput{
		Spec:      domain.GameSpec{Theme: "sunken empires", GameType: "card battler", PlayerCount: [2]int{2, 4}},
		Aggregate: domain.AggregateState{domain.StageGameDesign: designRaw},
		Feedback: &domain.BalanceAnalysis{
			Analysis: "One outlier.",
			SuggestedCardChanges: []domain.CardChange{{
				CardName:        "Pearl Diver",
				SuggestedChange: "Increase cost to 2 Energy.",
				Reasoning:       "Too much value per Energy.",
			}},
		},
		Round: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "revision")
	assert.Contains(t, prompt, "Pearl Diver")
	assert.Contains(t, prompt, "Increase cost to 2 Energy.")
	assert.Contains(t, prompt, "Prior design to revise")
}

func TestBalancePromptRequiresDesign(t *testing.T) {
	st, ok := StageByName(domain.StageBalance)
	require.True(t, ok)
	_, err := st.Prompt(PromptInput{Aggregate: domain.AggregateState{}})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegeneratePromptsCarryCoherenceNote(t *testing.T) {
	designRaw, err := json.Marshal(domain.GameDesign{
		GameName:      "Sunken Empires",
		Concept:       "c",
		CoreMechanics: []string{"m"},
		WinCondition:  "w",
		GameFlow:      "f",
		StarterCards:  []domain.Card{{Name: "Pearl Diver", Type: "Creature", Cost: "1", Text: "t"}},
	})
	require.NoError(t, err)
	agg := domain.AggregateState{domain.StageGameDesign: designRaw}

	st, ok := StageByName(domain.StageBalance)
	require.True(t, ok)
	prompt, err := st.Prompt(PromptInput{Aggregate: agg, Regenerate: true})
	require.NoError(t, err)
	assert.Contains(t, prompt, "targeted regeneration")
}

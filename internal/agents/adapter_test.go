package agents

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardforge/internal/domain"
	"cardforge/internal/infra"
	"cardforge/internal/providers/genai"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedGenerator replays canned replies in order and records every prompt
// it was handed.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []scriptedReply
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, req genai.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, req.Prompt)
	if len(g.replies) == 0 {
		return "", errors.New("scripted generator exhausted")
	}
	reply := g.replies[0]
	g.replies = g.replies[1:]
	return reply.text, reply.err
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func testLogger() infra.Logger {
	return infra.Logger(zerolog.New(io.Discard))
}

func fastOptions() AdapterOptions {
	return AdapterOptions{
		MaxAttempts:    3,
		Timeout:        time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func testSpec() domain.GameSpec {
	spec := domain.GameSpec{Theme: "sunken empires", GameType: "card battler", ArtStyle: "ink wash"}
	if err := spec.Validate(); err != nil {
		panic(err)
	}
	return spec
}

func validDesignJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(domain.GameDesign{
		GameName:      "Sunken Empires",
		Concept:       "Race to raise drowned cities.",
		CoreMechanics: []string{"Hand Management"},
		WinCondition:  "Raise three cities.",
		GameFlow:      "Draw, play, attack, discard.",
		StarterCards: []domain.Card{
			{Name: "Pearl Diver", Type: "Creature", Cost: "1 Energy", Text: "Draw a card."},
			{Name: "Tide Surge", Type: "Action", Cost: "2 Energy", Text: "Gain 2 Energy."},
		},
	})
	require.NoError(t, err)
	return string(raw)
}

func TestInvokeReturnsValidatedOutput(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{{text: validDesignJSON(t)}}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	raw, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.NoError(t, err)

	var design domain.GameDesign
	require.NoError(t, json.Unmarshal(raw, &design))
	assert.Equal(t, "Sunken Empires", design.GameName)
	assert.Equal(t, 1, gen.calls())
}

func TestInvokeRetriesWithCorrectiveContext(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{
		{text: `{"game_name":"Sunken Empires"}`},
		{text: validDesignJSON(t)},
	}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.NoError(t, err)
	require.Equal(t, 2, gen.calls())
	assert.Contains(t, gen.prompts[1], "failed validation")
	assert.Contains(t, gen.prompts[1], `"game_name":"Sunken Empires"`)
}

func TestInvokeExhaustionYieldsStageError(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{
		{text: `{}`}, {text: `{}`}, {text: `{}`},
	}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.Error(t, err)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageGameDesign, stageErr.Stage)
	assert.NotEmpty(t, stageErr.Diagnostics)
	assert.ErrorIs(t, err, domain.ErrSchemaViolation)
	assert.Equal(t, 3, gen.calls())
}

func TestInvokeRetriesTransientCallFailure(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{
		{err: errors.New("connection reset")},
		{text: validDesignJSON(t)},
	}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls())
}

func TestInvokeTransientExhaustionClassified(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{
		{err: errors.New("boom")}, {err: errors.New("boom")}, {err: errors.New("boom")},
	}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientCall)
}

func TestInvokeRejectsMissingDependency(t *testing.T) {
	gen := &scriptedGenerator{}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageBalance,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, gen.calls(), "no external call should happen on malformed input")
}

func TestInvokeRejectsUnknownStage(t *testing.T) {
	adapter := NewAdapter(&scriptedGenerator{}, testLogger(), fastOptions())
	_, err := adapter.Invoke(context.Background(), Invocation{
		JobID: "job-1", Stage: "mystery", Spec: testSpec(), Aggregate: domain.AggregateState{},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvokeAbortsWhenRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &scriptedGenerator{replies: []scriptedReply{{err: context.Canceled}}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	_, err := adapter.Invoke(ctx, Invocation{
		JobID:     "job-1",
		Stage:     domain.StageGameDesign,
		Spec:      testSpec(),
		Aggregate: domain.AggregateState{},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, gen.calls(), 1, "a cancelled run must not retry")
}

func TestInvokeWrapsTextStages(t *testing.T) {
	agg := domain.AggregateState{}
	designRaw := validDesignJSON(t)
	agg[domain.StageGameDesign] = json.RawMessage(designRaw)
	balanceRaw, err := json.Marshal(domain.BalanceAnalysis{
		Analysis:             "Even across the curve.",
		SuggestedCardChanges: []domain.CardChange{},
	})
	require.NoError(t, err)
	agg[domain.StageBalance] = balanceRaw

	markdown := "# Rulebook\n\nPlay cards, win sites."
	gen := &scriptedGenerator{replies: []scriptedReply{{text: markdown}}}
	adapter := NewAdapter(gen, testLogger(), fastOptions())

	raw, err := adapter.Invoke(context.Background(), Invocation{
		JobID:     "job-1",
		Stage:     domain.StageRulebook,
		Spec:      testSpec(),
		Aggregate: agg,
	})
	require.NoError(t, err)

	var doc domain.Rulebook
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, markdown, doc.Text)
	assert.True(t, strings.HasPrefix(doc.Text, "# Rulebook"))
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"cardforge/internal/agents"
	"cardforge/internal/domain"
)

// RegenerateStage re-runs a single stage against the frozen aggregate of a
// complete job and returns the replacement entry. Nothing else is re-run; the
// caller swaps the entry and bumps the job version.
func (e *Engine) RegenerateStage(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, stage string) (json.RawMessage, error) {
	st, ok := agents.StageByName(stage)
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	if !st.Rerunnable {
		return nil, fmt.Errorf("%w: stage %s cannot be re-run in isolation", domain.ErrValidation, stage)
	}
	return e.adapter.Invoke(ctx, agents.Invocation{
		JobID:      jobID,
		Stage:      stage,
		Spec:       spec,
		Aggregate:  agg.Clone(),
		Regenerate: true,
	})
}

// CardRegenResult carries the replacement entries for a card-level
// regeneration. Balance is nil when the prior balance analysis had no
// suggestion for the card, leaving that entry byte-identical.
type CardRegenResult struct {
	Design  json.RawMessage
	Balance json.RawMessage
	Artwork json.RawMessage
}

// RegenerateCard redesigns one named card and its artwork against the frozen
// aggregate, producing replacement design, artwork and (if touched) balance
// entries. The caller applies all of them or none.
func (e *Engine) RegenerateCard(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, cardName string) (*CardRegenResult, error) {
	design, err := agg.Design()
	if err != nil {
		return nil, err
	}
	idx := design.CardIndex(cardName)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no stage or card named %q", domain.ErrValidation, cardName)
	}

	card, err := e.adapter.RedesignCard(ctx, jobID, spec, agg.Clone(), cardName)
	if err != nil {
		return nil, err
	}
	description, err := e.adapter.DescribeCardArt(ctx, jobID, spec, agg.Clone(), *card)
	if err != nil {
		return nil, err
	}

	design.StarterCards[idx] = *card
	designRaw, err := json.Marshal(design)
	if err != nil {
		return nil, fmt.Errorf("encode revised design: %w", err)
	}

	artwork, err := agg.Artwork()
	if err != nil {
		return nil, err
	}
	if artwork.Cards == nil {
		artwork.Cards = map[string]string{}
	}
	artwork.Cards[cardName] = description
	artworkRaw, err := json.Marshal(artwork)
	if err != nil {
		return nil, fmt.Errorf("encode revised artwork: %w", err)
	}

	result := &CardRegenResult{Design: designRaw, Artwork: artworkRaw}

	// Stale balance suggestions for the regenerated card are dropped; if none
	// referenced it, the balance entry is left untouched.
	balance, err := agg.Balance()
	if err != nil {
		return nil, err
	}
	kept := balance.SuggestedCardChanges[:0]
	touched := false
	for _, change := range balance.SuggestedCardChanges {
		if change.CardName == cardName {
			touched = true
			continue
		}
		kept = append(kept, change)
	}
	if touched {
		balance.SuggestedCardChanges = kept
		balanceRaw, err := json.Marshal(balance)
		if err != nil {
			return nil, fmt.Errorf("encode revised balance: %w", err)
		}
		result.Balance = balanceRaw
	}

	e.logger.Info().
		Str("job_id", jobID).
		Str("card", cardName).
		Bool("balance_touched", touched).
		Msg("engine: card regenerated")
	return result, nil
}

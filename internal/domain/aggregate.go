package domain

import (
	"encoding/json"
	"fmt"
)

// AggregateState maps stage names to their validated raw outputs. Entries are
// treated as immutable once stored; replacing a stage result swaps the whole
// entry. Snapshots share the underlying raw bytes, which is safe because no
// caller mutates a stored json.RawMessage in place.
type AggregateState map[string]json.RawMessage

// Clone returns a shallow copy safe to hand to readers while the original
// keeps receiving merges.
func (a AggregateState) Clone() AggregateState {
	if a == nil {
		return nil
	}
	out := make(AggregateState, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Has reports whether every named stage has a merged result.
func (a AggregateState) Has(stages ...string) bool {
	for _, s := range stages {
		if _, ok := a[s]; !ok {
			return false
		}
	}
	return true
}

// Design decodes the game_design entry.
func (a AggregateState) Design() (*GameDesign, error) {
	var d GameDesign
	if err := a.decode(StageGameDesign, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Balance decodes the balance_analysis entry.
func (a AggregateState) Balance() (*BalanceAnalysis, error) {
	var b BalanceAnalysis
	if err := a.decode(StageBalance, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Artwork decodes the card_artwork entry.
func (a AggregateState) Artwork() (*CardArtwork, error) {
	var c CardArtwork
	if err := a.decode(StageCardArtwork, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (a AggregateState) decode(stage string, v any) error {
	raw, ok := a[stage]
	if !ok {
		return fmt.Errorf("%w: stage %s not present in aggregate", ErrNotFound, stage)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", stage, err)
	}
	return nil
}

// Package engine walks the stage dependency graph for one job: ready stages
// are dispatched concurrently through the agent adapter, every completion is
// serialized through a single merge point, and any required-stage failure
// aborts the run before further stages are dispatched.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"cardforge/internal/agents"
	"cardforge/internal/domain"
	"cardforge/internal/infra"
)

// Sink receives stage results in merge order. The engine guarantees a single
// goroutine calls Merge, so implementations see a total order per run.
type Sink interface {
	Merge(stage string, result json.RawMessage) error
}

// Options tunes pipeline policy.
type Options struct {
	// MaxFeedbackRounds bounds the design/balance revision loop. Zero means
	// the default of two corrective rounds.
	MaxFeedbackRounds int
}

// Engine executes the generation pipeline. It is stateless across runs; all
// per-job state lives in the local aggregate and the caller's sink.
type Engine struct {
	adapter   *agents.Adapter
	logger    infra.Logger
	maxRounds int
}

// New constructs an engine around an agent adapter.
func New(adapter *agents.Adapter, logger infra.Logger, opts Options) *Engine {
	rounds := opts.MaxFeedbackRounds
	if rounds <= 0 {
		rounds = 2
	}
	return &Engine{adapter: adapter, logger: logger, maxRounds: rounds}
}

// Run executes the full pipeline for one job, forwarding every merged stage
// result to the sink in merge order. On error the sink has received a
// consistent prefix; the caller decides what to do with it.
func (e *Engine) Run(ctx context.Context, jobID string, spec domain.GameSpec, sink Sink) (domain.AggregateState, error) {
	agg := domain.AggregateState{}
	merge := func(stage string, result json.RawMessage) error {
		st, ok := agents.StageByName(stage)
		if !ok {
			return fmt.Errorf("merge of unknown stage %q", stage)
		}
		// Scheduling already guarantees this; checked anyway so a bug cannot
		// corrupt the aggregate.
		for _, dep := range st.DependsOn {
			if !agg.Has(dep) {
				return fmt.Errorf("merge of %s before its dependency %s", stage, dep)
			}
		}
		agg[stage] = result
		return sink.Merge(stage, result)
	}

	if err := e.runFeedbackPhase(ctx, jobID, spec, agg, merge); err != nil {
		return agg, err
	}
	if err := e.runFanOutPhase(ctx, jobID, spec, agg, merge); err != nil {
		return agg, err
	}
	return agg, nil
}

// runFeedbackPhase produces the design and balance results, iterating the
// bounded revision loop until balance reports no suggested changes or the
// round budget is spent. Each round replaces both entries.
func (e *Engine) runFeedbackPhase(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, merge func(string, json.RawMessage) error) error {
	invoke := func(stage string, feedback *domain.BalanceAnalysis, round int) error {
		result, err := e.adapter.Invoke(ctx, agents.Invocation{
			JobID:     jobID,
			Stage:     stage,
			Spec:      spec,
			Aggregate: agg.Clone(),
			Feedback:  feedback,
			Round:     round,
		})
		if err != nil {
			return err
		}
		return merge(stage, result)
	}

	if err := invoke(domain.StageGameDesign, nil, 0); err != nil {
		return err
	}
	if err := invoke(domain.StageBalance, nil, 0); err != nil {
		return err
	}

	for round := 1; ; round++ {
		balance, err := agg.Balance()
		if err != nil {
			return err
		}
		if len(balance.SuggestedCardChanges) == 0 {
			break
		}
		if round > e.maxRounds {
			// Forward progress beats perfect convergence: the last pair stands.
			e.logger.Info().
				Str("job_id", jobID).
				Int("max_rounds", e.maxRounds).
				Msg("engine: feedback round budget spent, accepting last design")
			break
		}
		e.logger.Info().
			Str("job_id", jobID).
			Int("round", round).
			Int("suggested_changes", len(balance.SuggestedCardChanges)).
			Msg("engine: running corrective design round")
		if err := invoke(domain.StageGameDesign, balance, round); err != nil {
			return err
		}
		if err := invoke(domain.StageBalance, nil, round); err != nil {
			return err
		}
	}
	return nil
}

type stageOutcome struct {
	stage  string
	result json.RawMessage
	err    error
}

// runFanOutPhase drives the remaining stages with ready-set scheduling:
// every stage whose dependencies are merged is dispatched concurrently, and
// completions are applied one at a time through the merge closure. A failed
// required stage cancels everything in flight and aborts.
func (e *Engine) runFanOutPhase(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, merge func(string, json.RawMessage) error) error {
	pending := make(map[string]agents.Stage)
	for _, st := range agents.Stages() {
		if !agg.Has(st.Name) {
			pending[st.Name] = st
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan stageOutcome)
	inflight := 0
	drain := func() {
		for inflight > 0 {
			<-results
			inflight--
		}
	}

	for len(pending) > 0 || inflight > 0 {
		for name, st := range pending {
			if !agg.Has(st.DependsOn...) {
				continue
			}
			delete(pending, name)
			inflight++
			e.logger.Debug().Str("job_id", jobID).Str("stage", st.Name).Msg("engine: dispatching stage")
			// Snapshot before the goroutine starts; agg keeps mutating on merges.
			snapshot := agg.Clone()
			go func(st agents.Stage, snapshot domain.AggregateState) {
				result, err := e.adapter.Invoke(runCtx, agents.Invocation{
					JobID:     jobID,
					Stage:     st.Name,
					Spec:      spec,
					Aggregate: snapshot,
				})
				results <- stageOutcome{stage: st.Name, result: result, err: err}
			}(st, snapshot)
		}
		if inflight == 0 {
			return fmt.Errorf("pipeline stalled: no dispatchable stage among %d pending", len(pending))
		}

		out := <-results
		inflight--
		if out.err != nil {
			cancel()
			drain()
			return out.err
		}
		if err := merge(out.stage, out.result); err != nil {
			cancel()
			drain()
			return err
		}
		e.logger.Info().Str("job_id", jobID).Str("stage", out.stage).Msg("engine: stage merged")
	}
	return nil
}

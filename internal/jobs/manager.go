// Package jobs owns the job lifecycle: ids, the state machine, the exclusive
// write path into each job's aggregate, and the one-active-run-per-job
// invariant.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardforge/internal/agents"
	"cardforge/internal/domain"
	"cardforge/internal/engine"
	"cardforge/internal/infra"
)

// Store persists jobs. Implementations must return defensive copies so
// readers never share mutable state with an active run.
type Store interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
}

// Runner is the slice of the engine the manager drives.
type Runner interface {
	Run(ctx context.Context, jobID string, spec domain.GameSpec, sink engine.Sink) (domain.AggregateState, error)
	RegenerateStage(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, stage string) (json.RawMessage, error)
	RegenerateCard(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, cardName string) (*engine.CardRegenResult, error)
}

// Manager coordinates job submissions, status reads and regenerations.
type Manager struct {
	store  Store
	runner Runner
	logger infra.Logger

	// active is the per-job run latch. The mutex only guards latch flips,
	// never a run; two jobs never contend beyond that.
	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager wires a store and an engine together.
func NewManager(store Store, runner Runner, logger infra.Logger) *Manager {
	return &Manager{
		store:  store,
		runner: runner,
		logger: logger,
		active: make(map[string]struct{}),
	}
}

// Submit creates a queued job and launches its pipeline run in the
// background, returning the job id immediately.
func (m *Manager) Submit(ctx context.Context, spec domain.GameSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobStatusQueued,
		Spec:      spec,
		Aggregate: domain.AggregateState{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if !m.tryAcquire(job.ID) {
		return "", fmt.Errorf("%w: job %s", domain.ErrJobBusy, job.ID)
	}
	m.logger.Info().Str("job_id", job.ID).Str("theme", spec.Theme).Msg("jobs: submitted")
	go m.runPipeline(job)
	return job.ID, nil
}

// Status returns a snapshot of the job. Reads are idempotent and observe a
// consistent prefix of the merge order.
func (m *Manager) Status(ctx context.Context, id string) (*domain.Job, error) {
	return m.store.Get(ctx, id)
}

// Regenerate re-runs one stage or one card of a complete job. Target
// validation happens synchronously; the re-run itself is background work
// polled through Status like any other run.
func (m *Manager) Regenerate(ctx context.Context, id, target string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusComplete {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotReady, id, job.Status)
	}

	isStage := false
	if st, ok := agents.StageByName(target); ok {
		if !st.Rerunnable {
			return fmt.Errorf("%w: stage %s cannot be re-run in isolation", domain.ErrValidation, target)
		}
		isStage = true
	} else {
		design, derr := job.Aggregate.Design()
		if derr != nil {
			return derr
		}
		if design.CardIndex(target) < 0 {
			return fmt.Errorf("%w: no stage or card named %q", domain.ErrValidation, target)
		}
	}

	if !m.tryAcquire(id) {
		return fmt.Errorf("%w: job %s", domain.ErrJobBusy, id)
	}

	prior := job.Clone()
	job.Status = domain.JobStatusRunning
	job.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, job); err != nil {
		m.release(id)
		return fmt.Errorf("update job: %w", err)
	}
	m.logger.Info().Str("job_id", id).Str("target", target).Bool("stage", isStage).Msg("jobs: regeneration started")
	go m.runRegeneration(job, prior, target, isStage)
	return nil
}

// mergeSink is the single write path from the orchestrator into a job's
// aggregate. Run merges arrive on one goroutine, so every mutation below is
// totally ordered per job.
type mergeSink struct {
	m   *Manager
	ctx context.Context
	job *domain.Job
}

func (s *mergeSink) Merge(stage string, result json.RawMessage) error {
	s.job.Aggregate[stage] = result
	s.job.Version++
	s.job.UpdatedAt = time.Now().UTC()
	return s.m.store.Update(s.ctx, s.job)
}

func (m *Manager) runPipeline(job *domain.Job) {
	// Detached from the submitting request: the run outlives it.
	ctx := context.Background()
	defer m.release(job.ID)

	job.Status = domain.JobStatusRunning
	job.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, job); err != nil {
		// Returning here would strand the job in queued forever; record the
		// store failure as a terminal state so pollers see the truth.
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: failed to mark running")
		job.Status = domain.JobStatusFailed
		job.Err = &domain.JobError{Message: fmt.Sprintf("persist running state: %v", err)}
		job.UpdatedAt = time.Now().UTC()
		if uerr := m.store.Update(ctx, job); uerr != nil {
			m.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("jobs: failed to store terminal state")
		}
		return
	}

	_, err := m.runner.Run(ctx, job.ID, job.Spec, &mergeSink{m: m, ctx: ctx, job: job})
	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Err = jobError(err)
		m.logger.Error().Err(err).Str("job_id", job.ID).Str("stage", job.Err.Stage).Msg("jobs: run failed")
	} else {
		job.Status = domain.JobStatusComplete
		job.Err = nil
		m.logger.Info().Str("job_id", job.ID).Int("version", job.Version).Msg("jobs: run complete")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: failed to store terminal state")
	}
}

func (m *Manager) runRegeneration(job, prior *domain.Job, target string, isStage bool) {
	ctx := context.Background()
	defer m.release(job.ID)

	frozen := prior.Aggregate.Clone()
	err := func() error {
		if isStage {
			raw, err := m.runner.RegenerateStage(ctx, job.ID, job.Spec, frozen, target)
			if err != nil {
				return err
			}
			job.Aggregate = frozen.Clone()
			job.Aggregate[target] = raw
			return nil
		}
		result, err := m.runner.RegenerateCard(ctx, job.ID, job.Spec, frozen, target)
		if err != nil {
			return err
		}
		// All touched entries swap together or not at all.
		job.Aggregate = frozen.Clone()
		job.Aggregate[domain.StageGameDesign] = result.Design
		job.Aggregate[domain.StageCardArtwork] = result.Artwork
		if result.Balance != nil {
			job.Aggregate[domain.StageBalance] = result.Balance
		}
		return nil
	}()

	if err != nil {
		// A failed regeneration never downgrades a complete job: restore the
		// prior state wholesale.
		job.Status = prior.Status
		job.Aggregate = prior.Aggregate
		job.Version = prior.Version
		job.Err = prior.Err
		job.UpdatedAt = time.Now().UTC()
		m.logger.Warn().Err(err).Str("job_id", job.ID).Str("target", target).Msg("jobs: regeneration failed, prior result retained")
	} else {
		job.Status = domain.JobStatusComplete
		job.Version = prior.Version + 1
		job.Err = nil
		job.UpdatedAt = time.Now().UTC()
		m.logger.Info().Str("job_id", job.ID).Str("target", target).Int("version", job.Version).Msg("jobs: regeneration complete")
	}
	if err := m.store.Update(ctx, job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("jobs: failed to store regeneration result")
	}
}

func (m *Manager) tryAcquire(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[id]; busy {
		return false
	}
	m.active[id] = struct{}{}
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

func jobError(err error) *domain.JobError {
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		return &domain.JobError{Stage: stageErr.Stage, Message: stageErr.Error()}
	}
	return &domain.JobError{Message: err.Error()}
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cardforge/internal/domain"
	"cardforge/internal/infra"
	"cardforge/internal/sqlinline"
)

// PostgresStore persists jobs in a game_jobs table so results survive
// restarts. Spec and aggregate are stored as JSONB.
type PostgresStore struct {
	runner *infra.SQLRunner
}

// NewPostgresStore wraps an SQL runner.
func NewPostgresStore(runner *infra.SQLRunner) *PostgresStore {
	return &PostgresStore{runner: runner}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.runner.Exec(ctx, sqlinline.QCreateJobsTable)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	specJSON, aggJSON, errStage, errMessage, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = s.runner.Exec(ctx, sqlinline.QInsertJob,
		job.ID, string(job.Status), specJSON, aggJSON, job.Version,
		errStage, errMessage, job.CreatedAt, job.UpdatedAt)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QSelectJob, id)
	var (
		job        domain.Job
		status     string
		specJSON   []byte
		aggJSON    []byte
		errStage   string
		errMessage string
	)
	if err := row.Scan(&job.ID, &status, &specJSON, &aggJSON, &job.Version,
		&errStage, &errMessage, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(specJSON, &job.Spec); err != nil {
		return nil, fmt.Errorf("decode job spec: %w", err)
	}
	if err := json.Unmarshal(aggJSON, &job.Aggregate); err != nil {
		return nil, fmt.Errorf("decode job aggregate: %w", err)
	}
	if errStage != "" || errMessage != "" {
		job.Err = &domain.JobError{Stage: errStage, Message: errMessage}
	}
	return &job, nil
}

func (s *PostgresStore) Update(ctx context.Context, job *domain.Job) error {
	_, aggJSON, errStage, errMessage, err := encodeJob(job)
	if err != nil {
		return err
	}
	tag, err := s.runner.Exec(ctx, sqlinline.QUpdateJob,
		job.ID, string(job.Status), aggJSON, job.Version,
		errStage, errMessage, job.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, job.ID)
	}
	return nil
}

func encodeJob(job *domain.Job) (specJSON, aggJSON []byte, errStage, errMessage string, err error) {
	specJSON, err = json.Marshal(job.Spec)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("encode job spec: %w", err)
	}
	agg := job.Aggregate
	if agg == nil {
		agg = domain.AggregateState{}
	}
	aggJSON, err = json.Marshal(agg)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("encode job aggregate: %w", err)
	}
	if job.Err != nil {
		errStage = job.Err.Stage
		errMessage = job.Err.Message
	}
	return specJSON, aggJSON, errStage, errMessage, nil
}

var _ Store = (*PostgresStore)(nil)

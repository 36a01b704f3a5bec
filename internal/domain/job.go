package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether the status ends a run. A complete job may still
// accept a regeneration request, which starts a new run under a new version.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// JobError records which stage sank a run and why.
type JobError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Job encapsulates one generation request through its whole lifecycle. The
// job manager owns it exclusively; the orchestrator only reaches the
// aggregate through the manager's merge entry point.
type Job struct {
	ID        string
	Status    JobStatus
	Spec      GameSpec
	Aggregate AggregateState
	Version   int
	Err       *JobError
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone copies the job so readers never observe a half-applied merge.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Aggregate = j.Aggregate.Clone()
	if j.Err != nil {
		errCopy := *j.Err
		out.Err = &errCopy
	}
	return &out
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardforge/internal/domain"
)

type regenerateRequest struct {
	Target string `json:"target"`
}

type statusResponse struct {
	JobID   string                `json:"job_id"`
	Status  domain.JobStatus      `json:"status"`
	Version int                   `json:"version"`
	Result  domain.AggregateState `json:"result,omitempty"`
	Error   *domain.JobError      `json:"error,omitempty"`
}

// GenerateGame accepts a game spec and queues a full pipeline run. The
// response carries the job id for polling; nothing blocks on generation.
func (a *App) GenerateGame(w http.ResponseWriter, r *http.Request) {
	var spec domain.GameSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	jobID, err := a.Manager.Submit(r.Context(), spec)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("http: submit failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(domain.JobStatusQueued),
	})
}

// GameStatus returns the current snapshot of a job. The aggregate is included
// once the job has produced anything, so callers can watch stages land.
func (a *App) GameStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	job, err := a.Manager.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("http: status read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	resp := statusResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Version: job.Version,
		Error:   job.Err,
	}
	if len(job.Aggregate) > 0 {
		resp.Result = job.Aggregate
	}
	a.json(w, http.StatusOK, resp)
}

// Regenerate re-runs one stage or one card of a finished job.
func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Target == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "target required")
		return
	}
	if err := a.Manager.Regenerate(r.Context(), id, req.Target); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrJobBusy):
			a.error(w, http.StatusConflict, "job_busy", err.Error())
		case errors.Is(err, domain.ErrJobNotReady):
			a.error(w, http.StatusConflict, "job_not_ready", err.Error())
		case errors.Is(err, domain.ErrValidation):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			a.Logger.Error().Err(err).Str("job_id", id).Msg("http: regenerate failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to start regeneration")
		}
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": string(domain.JobStatusRunning),
	})
}

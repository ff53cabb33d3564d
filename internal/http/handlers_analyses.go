// Package httpx provides the HTTP API for submitting business ideas and reading analysis jobs.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/marketlens/internal/domain/model"
)

var errInternal = errors.New("internal error")

// AnalysisService is what the analysis handlers need from the intake service.
type AnalysisService interface {
	Create(ctx context.Context, in model.AnalysisInput) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
}

// AnalysisHandlers provides HTTP handlers for analysis jobs.
type AnalysisHandlers struct {
	Svc    AnalysisService
	Logger *slog.Logger
}

// createAnalysisResponse is returned when a job is accepted.
type createAnalysisResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

// progressResponse is the lightweight polling view of a job.
type progressResponse struct {
	JobID       string                             `json:"job_id"`
	Status      model.JobStatus                    `json:"status"`
	Progress    map[model.StepName]model.StepState `json:"progress"`
	Summary     *model.JobSummary                  `json:"summary,omitempty"`
	Error       *string                            `json:"error,omitempty"`
	UpdatedAt   time.Time                          `json:"updated_at"`
	CompletedAt *time.Time                         `json:"completed_at,omitempty"`
}

// CreateAnalysis accepts a business idea and starts its analysis in the background.
func (h *AnalysisHandlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var in model.AnalysisInput
	if !DecodeJSON(w, r, &in) {
		return
	}

	job, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+job.ID)
	WriteJSON(w, http.StatusAccepted, createAnalysisResponse{JobID: job.ID, Status: job.Status})
}

// GetAnalysis returns the full job including step results.
func (h *AnalysisHandlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetProgress returns the job status and per-step progress without the results.
func (h *AnalysisHandlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, progressResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		Summary:     job.Summary,
		Error:       job.Error,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	})
}

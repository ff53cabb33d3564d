package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/domain/sizing"
	apperrors "github.com/target/marketlens/internal/errors"
)

// maxSizingSources bounds the observations accepted by one sizing request.
const maxSizingSources = 500

// SizingEngine computes market sizes from raw observations.
type SizingEngine interface {
	ComputeSizing(in sizing.Input) model.SizingResult
}

// SizingHandlers exposes the market sizing engine directly.
type SizingHandlers struct {
	Engine SizingEngine
	// GeographicFocus is applied when the request does not set one.
	GeographicFocus *float64
	Logger          *slog.Logger
}

// sizingRequest mirrors sizing.Input with JSON names.
type sizingRequest struct {
	Sources           []model.RawObservation         `json:"sources"`
	Segmentation      *model.Segmentation            `json:"segmentation,omitempty"`
	ProblemValidation *model.ProblemValidationResult `json:"problem_validation,omitempty"`
	Competition       *model.CompetitionAnalysis     `json:"competition,omitempty"`
	Options           model.SizingOptions            `json:"options"`
}

// ComputeSizing runs the engine on the posted sources. The engine never fails: a result it
// could not size carries an error message and is answered with 422.
func (h *SizingHandlers) ComputeSizing(w http.ResponseWriter, r *http.Request) {
	var req sizingRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Sources) == 0 {
		RenderError(w, r, h.Logger, apperrors.ValidationField("sources", "at least one source is required"))
		return
	}
	if len(req.Sources) > maxSizingSources {
		RenderError(w, r, h.Logger, apperrors.ValidationField("sources",
			fmt.Sprintf("at most %d sources are allowed", maxSizingSources)))
		return
	}
	if req.Options.GeographicFocus == nil {
		req.Options.GeographicFocus = h.GeographicFocus
	}

	result := h.Engine.ComputeSizing(sizing.Input{
		Sources:           req.Sources,
		Segmentation:      req.Segmentation,
		ProblemValidation: req.ProblemValidation,
		Competition:       req.Competition,
		Options:           req.Options,
	})

	status := http.StatusOK
	if result.Error != "" {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, result)
}

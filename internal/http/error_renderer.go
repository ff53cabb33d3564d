package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/service"
)

// statusClientClosedRequest is the de facto status for requests the client abandoned.
const statusClientClosedRequest = 499

// ErrorStatus maps an application error to its HTTP status code.
func ErrorStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInsufficientData:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return statusClientClosedRequest
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// RenderError writes err as a JSON error response. Client errors echo the error message;
// server errors are logged and answered with a generic message so internals do not leak.
func RenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := ErrorStatus(err)
	code := string(service.ErrorCode(err))

	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		msg := service.DisplayMessage(err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errors.New(msg)})
		return
	}

	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: err, Field: apperrors.GetField(err)})
}

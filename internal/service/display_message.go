package service

import (
	"context"
	"errors"

	apperrors "github.com/target/marketlens/internal/errors"
)

// User-facing messages for failed or skipped analysis steps, keyed by the innermost error code.
const (
	MsgServiceUnavailable = "Service unavailable. The analysis service could not be reached, please try again later."
	MsgNetworkError       = "Network error. The analysis service could not be contacted."
	MsgNotFound           = "Not found. The analysis service does not support this request."
	MsgServerError        = "Server error. The analysis service failed while processing this request."
	MsgTimedOut           = "Timed out. The analysis service took too long to respond."
	MsgInsufficientData   = "Not enough market data was available to complete this analysis."
	MsgGenericFailure     = "This analysis could not be completed."

	MsgSkippedMissingInput = "Skipped. This analysis needs input that was not provided."
)

// ErrorCode returns the code recorded on a failed step result. Pipeline wrapper codes are
// looked through so a timeout wrapped as a step failure still reports as a timeout.
func ErrorCode(err error) apperrors.ErrorCode {
	if err == nil {
		return ""
	}
	code := apperrors.RootCode(err)
	if code != "" && code != apperrors.ErrCodeStepFailure && code != apperrors.ErrCodeFatalPipeline {
		return code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCodeCanceled
	case code != "":
		return code
	default:
		return apperrors.ErrCodeInternal
	}
}

// DisplayMessage picks the user-facing message for a step error.
func DisplayMessage(err error) string {
	switch ErrorCode(err) {
	case apperrors.ErrCodeUnavailable:
		return MsgServiceUnavailable
	case apperrors.ErrCodeNetwork:
		return MsgNetworkError
	case apperrors.ErrCodeNotFound:
		return MsgNotFound
	case apperrors.ErrCodeServer:
		return MsgServerError
	case apperrors.ErrCodeTimeout:
		return MsgTimedOut
	case apperrors.ErrCodeInsufficientData:
		return MsgInsufficientData
	default:
		return MsgGenericFailure
	}
}

// SkipMessage picks the user-facing message for a skipped step. A validation cause means the
// request lacked an optional input; any other cause is shown as a failure would be.
func SkipMessage(cause error) string {
	if apperrors.IsValidation(cause) {
		return MsgSkippedMissingInput
	}
	return DisplayMessage(cause)
}

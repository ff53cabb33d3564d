package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/target/marketlens/internal/errors"
)

func TestDisplayMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.ErrorCode
		msg  string
	}{
		{
			name: "unavailable",
			err:  apperrors.Unavailable("no api key"),
			code: apperrors.ErrCodeUnavailable,
			msg:  MsgServiceUnavailable,
		},
		{
			name: "network",
			err:  apperrors.Wrap(errors.New("connection refused"), apperrors.ErrCodeNetwork, "dial research"),
			code: apperrors.ErrCodeNetwork,
			msg:  MsgNetworkError,
		},
		{
			name: "not found",
			err:  apperrors.NotFound("endpoint missing"),
			code: apperrors.ErrCodeNotFound,
			msg:  MsgNotFound,
		},
		{
			name: "server",
			err:  apperrors.Wrap(errors.New("502"), apperrors.ErrCodeServer, "research returned 502"),
			code: apperrors.ErrCodeServer,
			msg:  MsgServerError,
		},
		{
			name: "bare deadline",
			err:  fmt.Errorf("call research: %w", context.DeadlineExceeded),
			code: apperrors.ErrCodeTimeout,
			msg:  MsgTimedOut,
		},
		{
			name: "timeout behind step failure",
			err:  apperrors.StepFailure(context.DeadlineExceeded, "competition"),
			code: apperrors.ErrCodeTimeout,
			msg:  MsgTimedOut,
		},
		{
			name: "innermost code wins",
			err:  apperrors.FatalPipeline(apperrors.Unavailable("classifier down"), "classification failed"),
			code: apperrors.ErrCodeUnavailable,
			msg:  MsgServiceUnavailable,
		},
		{
			name: "insufficient data",
			err:  apperrors.InsufficientData("no sources"),
			code: apperrors.ErrCodeInsufficientData,
			msg:  MsgInsufficientData,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			code: apperrors.ErrCodeCanceled,
			msg:  MsgGenericFailure,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			code: apperrors.ErrCodeInternal,
			msg:  MsgGenericFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.msg, DisplayMessage(tt.err))
		})
	}
}

func TestErrorCode_Nil(t *testing.T) {
	assert.Empty(t, ErrorCode(nil))
}

func TestSkipMessage(t *testing.T) {
	assert.Equal(t, MsgSkippedMissingInput,
		SkipMessage(apperrors.ValidationField("problem_statement", "no problem statement was supplied")))
	assert.Equal(t, MsgServiceUnavailable,
		SkipMessage(apperrors.Unavailable("competition analysis service is not configured")))
}

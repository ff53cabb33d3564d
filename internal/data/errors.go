package data

import (
	"errors"

	apperrors "github.com/target/marketlens/internal/errors"
)

// Shared sentinel errors for the job stores.
var (
	ErrJobIDRequired = apperrors.ValidationField("id", "job id is required")
	ErrNilJob        = errors.New("job cannot be nil")
	ErrKeyRequired   = errors.New("key cannot be empty")
)

func jobNotFound(id string) error {
	return apperrors.NotFoundf("job %s not found", id)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrTrialNotFound         = errors.New("trial not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidTarget         = errors.New("invalid enrollment target")
	ErrEmptyCriteria         = errors.New("criteria carry no constraints")
	ErrRetrievalUnavailable  = errors.New("trial index unavailable")
	ErrSimilarityUnavailable = errors.New("similarity provider unavailable")
	ErrDeadlineExceeded      = errors.New("evaluation deadline exceeded")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

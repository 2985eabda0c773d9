package service

import (
	"errors"
	"fmt"
)

// ValidationError reports invalid order input: missing user, empty item
// list, an unparsable or unknown product id, or a non-positive quantity.
// It is always surfaced to the caller and never leaves a partial write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

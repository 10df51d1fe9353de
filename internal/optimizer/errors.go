package optimizer

import (
	"errors"
	"fmt"
)

// ValidationKind classifies why an input cannot be optimized.
type ValidationKind string

const (
	InsufficientData  ValidationKind = "insufficient_data"
	NonPositiveMargin ValidationKind = "non_positive_margin"
)

// ValidationError is returned when the inputs cannot produce a recommendation.
// It is never retried.
type ValidationError struct {
	Kind ValidationKind
	Msg  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("optimizer: %s", e.Msg)
}

func newInsufficientData(n int) *ValidationError {
	return &ValidationError{
		Kind: InsufficientData,
		Msg:  fmt.Sprintf("need at least %d observations, got %d", MinObservations, n),
	}
}

func newNonPositiveMargin(pct float64) *ValidationError {
	return &ValidationError{
		Kind: NonPositiveMargin,
		Msg:  fmt.Sprintf("contribution margin must be positive, got %.2f%%", pct),
	}
}

// AsValidation returns the ValidationError in err's chain, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsValidation reports whether err (or any error in its chain) is a ValidationError.
func IsValidation(err error) bool {
	_, ok := AsValidation(err)
	return ok
}

package telemetry

import (
	"errors"
	"fmt"
)

// ErrInvalidTelemetry is the class every ValidationError unwraps to.
var ErrInvalidTelemetry = errors.New("INVALID_TELEMETRY")

// ValidationError reports a missing or malformed field in a producer frame.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid telemetry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidTelemetry
}

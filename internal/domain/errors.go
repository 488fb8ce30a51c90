package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrHoldConflict      = errors.New("seats no longer available")
	ErrConfirm           = errors.New("hold expired or invalid")
	ErrNetwork           = errors.New("service unreachable")
	ErrPaymentSimulation = errors.New("payment failed")
	ErrTimeout           = errors.New("request timed out")

	ErrInvalidTransition    = errors.New("invalid workflow transition")
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrSessionExpired       = errors.New("session expired")
	ErrTripCancelled        = errors.New("trip cancelled")
	ErrConfirmationRequired = errors.New("explicit confirmation required")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every local form constraint that failed.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func invalidTransition(from, to string) error {
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
}

// InvalidStep reports an operation attempted from the wrong workflow step.
func InvalidStep(op, step string) error {
	return errors.Wrapf(ErrInvalidTransition, "%s not allowed at step %s", op, step)
}

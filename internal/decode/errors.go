package decode

import (
	"errors"
	"fmt"
)

// ErrMissingField matches every *MissingFieldError via errors.Is.
var ErrMissingField = errors.New("missing field")

// MissingFieldError reports a required field that is absent or has the wrong type.
type MissingFieldError struct {
	Field  string
	Reason string // "absent" or "wrong type (<go type>)"
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

func absent(field string) error {
	return &MissingFieldError{Field: field, Reason: "absent"}
}

func wrongType(field string, v any) error {
	return &MissingFieldError{Field: field, Reason: fmt.Sprintf("wrong type (%T)", v)}
}

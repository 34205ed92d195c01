package breakdown

import (
	"errors"
	"fmt"
)

// Validation failures. Each maps to a client error on the ingest surface.
var (
	// ErrMalformedPayload is returned when the raw bytes are not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidPriority is returned when priority is outside the known set.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidTimestamp is returned when occurredOn cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// ErrStorageUnavailable is returned when the raw archive or the record
// store cannot complete a write. The event is safe to resubmit.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ValidationError carries the violated constraint and the field it names.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err belongs to the validation taxonomy.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidTimestamp)
}

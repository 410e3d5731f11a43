package schema

import "fmt"

// ValidationError reports why a candidate record was rejected. A rejected
// record is never persisted, partially or fully.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on field %q: %s", e.Field, e.Reason)
}

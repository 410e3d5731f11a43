package store

import (
	"errors"
	"fmt"
)

// ErrOptionsMismatch is returned when a table name is re-registered with
// options that differ from the first registration. The registry never
// silently keeps first-seen options for a conflicting caller.
var ErrOptionsMismatch = errors.New("table already registered with different options")

// ErrInvalidTableName is returned for table names that are not plain
// identifiers.
var ErrInvalidTableName = errors.New("invalid table name")

// NotFoundError reports that an update targeted an id that does not exist
// under the currently resolved scope. A missing row and an out-of-scope
// row are deliberately indistinguishable, so existence never leaks across
// tenants.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %q not found in table %q", e.ID, e.Table)
}

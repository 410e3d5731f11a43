package domain

// ScopeMode controls how a table's rows are partitioned between the
// tenant's own identity and an overridable group identity.
type ScopeMode string

const (
	// ScopeSelf partitions rows by the tenant's own identity, always.
	ScopeSelf ScopeMode = "self"
	// ScopeGroup partitions rows by the currently resolved scope, which
	// is the tenant's own identity unless a group override is active.
	ScopeGroup ScopeMode = "group"
	// Unscoped stores rows without an owner partition.
	Unscoped ScopeMode = "unscoped"
)

// Valid reports whether m is a known scope mode.
func (m ScopeMode) Valid() bool {
	switch m {
	case ScopeSelf, ScopeGroup, Unscoped:
		return true
	}
	return false
}

// Scoped reports whether rows carry an owner key.
func (m ScopeMode) Scoped() bool {
	return m == ScopeSelf || m == ScopeGroup
}

// TableOptions are the authoritative options supplied when a table is
// first registered.
type TableOptions struct {
	Mode ScopeMode
}

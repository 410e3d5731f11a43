package store

// ScopeContext tracks the active partition identity for one tenant
// instance. It has exactly two states: default, where operations resolve
// to the tenant's own identity, and overridden, where they resolve to an
// explicitly set group identity.
//
// The context is plain mutable state with no locking: the hosting model
// guarantees at most one logical operation per tenant instance runs at a
// time (service.Instance.Do enforces this). Every table operation reads
// the context at call time, so a scope change is visible to the very next
// call on an existing handle.
type ScopeContext struct {
	self     string
	override string
}

// NewScopeContext creates a context resolving to the tenant's own
// identity until a scope override is set.
func NewScopeContext(self string) *ScopeContext {
	return &ScopeContext{self: self}
}

// Self returns the tenant's own identity.
func (s *ScopeContext) Self() string {
	return s.self
}

// SetScope activates a group identity override. An empty id clears the
// override, returning the context to its default state.
func (s *ScopeContext) SetScope(id string) {
	s.override = id
}

// ClearScope returns the context to its default state.
func (s *ScopeContext) ClearScope() {
	s.override = ""
}

// Overridden reports whether a group override is active.
func (s *ScopeContext) Overridden() bool {
	return s.override != ""
}

// Resolve returns the currently active partition identity.
func (s *ScopeContext) Resolve() string {
	if s.override != "" {
		return s.override
	}
	return s.self
}

// RunScoped runs fn with the given override active and restores the
// previous scope on every return path, including panics. Callers that can
// use RunScoped instead of a bare SetScope/ClearScope pair should: it
// removes the forgot-to-reset failure mode entirely.
func (s *ScopeContext) RunScoped(id string, fn func() error) error {
	prev := s.override
	s.override = id
	defer func() { s.override = prev }()
	return fn()
}

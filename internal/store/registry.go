// Package store implements the per-tenant document-table storage layer:
// table provisioning, record validation and identity assignment, the
// query compiler, and the scope mechanism that partitions rows between a
// tenant's own identity and a shared group identity.
package store

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cellstore/internal/domain"
	"cellstore/internal/engine"
	"cellstore/internal/schema"
)

// Notifier is the fire-and-forget change hook invoked after every
// successful mutation. Its completion is never awaited; a panic inside it
// is contained by the registry and never fails the triggering operation.
type Notifier func(event string, payload any)

// guarded wraps a notifier so its failures stay its own.
func guarded(notify Notifier) Notifier {
	return func(event string, payload any) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("change notification %q recovered: %v", event, r)
			}
		}()
		notify(event, payload)
	}
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry creates and memoizes one Table handle per table name for the
// lifetime of the owning tenant instance, provisioning the physical table
// on first registration.
type Registry struct {
	eng    *engine.Engine
	tenant string
	scope  *ScopeContext
	notify Notifier

	mu     sync.Mutex
	tables map[string]*Table

	// Overridable in tests; the isolation properties need controlled ids
	// and clocks.
	newID func() string
	now   func() time.Time
}

// NewRegistry builds a registry bound to one tenant identity and one
// engine. notify may be nil.
func NewRegistry(eng *engine.Engine, tenant string, notify Notifier) *Registry {
	if notify == nil {
		notify = func(string, any) {}
	}
	return &Registry{
		eng:    eng,
		tenant: tenant,
		scope:  NewScopeContext(tenant),
		notify: guarded(notify),
		tables: make(map[string]*Table),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Tenant returns the tenant identity this registry serves.
func (r *Registry) Tenant() string {
	return r.tenant
}

// Scope returns the registry's scope context.
func (r *Registry) Scope() *ScopeContext {
	return r.scope
}

// Table returns the handle for name, creating the physical table on first
// registration. The options supplied on first registration are
// authoritative: a later call with the same name and differing options
// (scope mode or schema) fails with ErrOptionsMismatch rather than
// silently keeping the first-seen configuration.
func (r *Registry) Table(ctx context.Context, name string, sch *schema.Schema, opts domain.TableOptions) (*Table, error) {
	if !tableNameRe.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown scope mode %q for table %q", opts.Mode, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tables[name]; ok {
		if existing.mode != opts.Mode || existing.schema != sch {
			return nil, fmt.Errorf("%w: %q", ErrOptionsMismatch, name)
		}
		return existing, nil
	}

	if err := r.provision(ctx, name, opts.Mode); err != nil {
		return nil, err
	}

	t := &Table{reg: r, name: name, schema: sch, mode: opts.Mode}
	r.tables[name] = t
	return t, nil
}

// Lookup returns the handle for an already-registered table, or nil when
// no table with that name has been registered.
func (r *Registry) Lookup(name string) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tables[name]
}

// provision issues the idempotent create statement for the physical
// table. Only the benign "already exists" race (another process creating
// the same table concurrently) is swallowed; genuine storage failures
// propagate.
func (r *Registry) provision(ctx context.Context, name string, mode domain.ScopeMode) error {
	var ddl string
	if mode.Scoped() {
		ddl = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			owner_key TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner_key);
		`, name, name, name)
	} else {
		ddl = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		`, name)
	}

	if _, err := r.eng.Execute(ctx, ddl); err != nil {
		if isAlreadyExists(err) {
			log.Printf("table %q already provisioned: %v", name, err)
			return nil
		}
		return fmt.Errorf("failed to provision table %q: %w", name, err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

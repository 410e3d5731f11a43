// Package service hosts tenant instances: one database file, registry and
// serialization lock per tenant.
package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"cellstore/internal/config"
	"cellstore/internal/domain"
	"cellstore/internal/engine"
	"cellstore/internal/notify"
	"cellstore/internal/schema"
	"cellstore/internal/store"
)

// Tenant ids become database file names, so they are held to the same
// identifier shape as table names.
var tenantRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Host owns all tenant instances. Instances are created lazily on first
// use and live until the host closes.
type Host struct {
	dataDir string
	bus     *notify.Bus

	mu        sync.Mutex
	tables    []config.TableSpec
	instances map[string]*Instance
}

// NewHost creates a host storing one database file per tenant under
// cfg.DataDir. bus may be nil when nothing consumes change events.
func NewHost(cfg *config.Config, bus *notify.Bus) (*Host, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Host{
		dataDir:   cfg.DataDir,
		bus:       bus,
		tables:    cfg.Tables,
		instances: make(map[string]*Instance),
	}, nil
}

// SetTables replaces the table declarations applied to new instances.
// Existing instances keep their registrations; a changed declaration for
// an already-registered table would be a mismatch anyway.
func (h *Host) SetTables(tables []config.TableSpec) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tables = tables
}

// Instance returns the tenant's instance, opening its database and
// registering the configured tables on first use.
func (h *Host) Instance(tenant string) (*Instance, error) {
	if !tenantRe.MatchString(tenant) {
		return nil, fmt.Errorf("invalid tenant id %q", tenant)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if inst, ok := h.instances[tenant]; ok {
		return inst, nil
	}

	path := filepath.Join(h.dataDir, tenant+".db")
	eng, err := engine.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database for tenant %q: %w", tenant, err)
	}

	reg := store.NewRegistry(eng, tenant, h.notifier(tenant))
	inst := &Instance{tenant: tenant, eng: eng, reg: reg}

	if err := inst.registerTables(h.tables); err != nil {
		eng.Close()
		return nil, err
	}

	h.instances[tenant] = inst
	log.Printf("instance started for tenant %q (%s)", tenant, path)
	return inst, nil
}

// notifier adapts the bus to the storage layer's change hook.
func (h *Host) notifier(tenant string) store.Notifier {
	if h.bus == nil {
		return nil
	}
	return func(event string, payload any) {
		h.bus.Publish(notify.Event{Name: event, Tenant: tenant, Payload: payload})
	}
}

// Tenants returns the ids of all running instances, for diagnostics.
func (h *Host) Tenants() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.instances))
	for tenant := range h.instances {
		out = append(out, tenant)
	}
	return out
}

// Close shuts down every instance.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for tenant, inst := range h.instances {
		if err := inst.eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close tenant %q: %w", tenant, err)
		}
		delete(h.instances, tenant)
	}
	return firstErr
}

// Instance is one tenant's running storage cell. Do serializes logical
// operations, which is what lets the scope context stay lock-free.
type Instance struct {
	tenant string
	eng    *engine.Engine
	reg    *store.Registry

	mu sync.Mutex
}

// Tenant returns the tenant id this instance serves.
func (i *Instance) Tenant() string {
	return i.tenant
}

// Do runs fn with exclusive access to the instance's registry. All
// request handling goes through here; at most one logical operation runs
// per instance at a time.
func (i *Instance) Do(fn func(reg *store.Registry) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn(i.reg)
}

// registerTables provisions the configured tables on a fresh instance.
func (i *Instance) registerTables(specs []config.TableSpec) error {
	for _, spec := range specs {
		sch, opts, err := buildTable(spec)
		if err != nil {
			return err
		}
		if _, err := i.reg.Table(context.Background(), spec.Name, sch, opts); err != nil {
			return fmt.Errorf("register table %q for tenant %q: %w", spec.Name, i.tenant, err)
		}
	}
	return nil
}

// buildTable converts a config table declaration into a schema and
// options.
func buildTable(spec config.TableSpec) (*schema.Schema, domain.TableOptions, error) {
	fields := make([]schema.Field, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		var opts []schema.Option
		if f.Required {
			opts = append(opts, schema.Required())
		}
		if f.Default != nil {
			opts = append(opts, schema.Default(f.Default))
		}

		switch f.Type {
		case "string":
			fields = append(fields, schema.String(f.Name, opts...))
		case "number":
			fields = append(fields, schema.Number(f.Name, opts...))
		case "boolean":
			fields = append(fields, schema.Bool(f.Name, opts...))
		case "object":
			fields = append(fields, schema.Object(f.Name, opts...))
		case "array":
			fields = append(fields, schema.Array(f.Name, opts...))
		case "any":
			fields = append(fields, schema.Any(f.Name, opts...))
		default:
			return nil, domain.TableOptions{}, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}

	var mode domain.ScopeMode
	switch spec.Scope {
	case "self", "":
		mode = domain.ScopeSelf
	case "group":
		mode = domain.ScopeGroup
	case "unscoped":
		mode = domain.Unscoped
	default:
		return nil, domain.TableOptions{}, fmt.Errorf("table %q: unknown scope %q", spec.Name, spec.Scope)
	}

	return schema.New(fields...), domain.TableOptions{Mode: mode}, nil
}

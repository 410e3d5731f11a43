package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cellstore/internal/domain"
	"cellstore/internal/schema"
)

// Table is a memoized handle over one physical document table. Handles
// are created by the registry and stay valid for the instance lifetime;
// every operation reads the active scope fresh, so scope changes apply
// immediately to handles created earlier.
type Table struct {
	reg    *Registry
	name   string
	schema *schema.Schema
	mode   domain.ScopeMode
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Mode returns the table's scope mode.
func (t *Table) Mode() domain.ScopeMode {
	return t.mode
}

// ownerKey resolves the partition identity for the current operation.
// Self tables always use the tenant's own identity; group tables follow
// the active scope.
func (t *Table) ownerKey() string {
	if t.mode == domain.ScopeSelf {
		return t.reg.scope.Self()
	}
	return t.reg.scope.Resolve()
}

// ============================================================================
// Mutations
// ============================================================================

// Create validates data, assigns identity and timestamps, persists the
// record under the current scope, and emits a "<table>:create" change
// event. The stored payload is the validated copy with defaults applied;
// the caller's map is never mutated.
func (t *Table) Create(ctx context.Context, data map[string]any) (*domain.Record, error) {
	validated, err := t.schema.Validate(data)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for table %q: %w", t.name, err)
	}

	rec := &domain.Record{
		ID:     t.reg.newID(),
		Fields: validated,
	}
	now := t.reg.now().Truncate(time.Millisecond)
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if t.mode.Scoped() {
		stmt := fmt.Sprintf(
			"INSERT INTO %s (id, data, created_at, updated_at, owner_key) VALUES (?, ?, ?, ?, ?)",
			t.name,
		)
		_, err = t.reg.eng.Execute(ctx, stmt,
			rec.ID, string(payload), now.UnixMilli(), now.UnixMilli(), t.ownerKey())
	} else {
		stmt := fmt.Sprintf(
			"INSERT INTO %s (id, data, created_at, updated_at) VALUES (?, ?, ?, ?)",
			t.name,
		)
		_, err = t.reg.eng.Execute(ctx, stmt,
			rec.ID, string(payload), now.UnixMilli(), now.UnixMilli())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert into table %q: %w", t.name, err)
	}

	t.reg.notify(t.name+":create", rec.Flatten())
	return rec, nil
}

// Update merges partial onto the stored record, re-validates the whole
// merged object, and persists it with a strictly increased updatedAt.
// Generated fields in partial are ignored. A miss under the current scope
// returns NotFoundError; validation failure leaves the stored row
// untouched.
func (t *Table) Update(ctx context.Context, id string, partial map[string]any) (*domain.Record, error) {
	existing, err := t.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &NotFoundError{Table: t.name, ID: id}
	}

	merged := domain.MergeFields(existing.Fields, partial)
	validated, err := t.schema.Validate(merged)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(validated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for table %q: %w", t.name, err)
	}

	// updatedAt must strictly increase even when two updates land within
	// the same millisecond.
	now := t.reg.now().Truncate(time.Millisecond)
	if !now.After(existing.UpdatedAt) {
		now = existing.UpdatedAt.Add(time.Millisecond)
	}

	stmt := fmt.Sprintf("UPDATE %s SET data = ?, updated_at = ? WHERE id = ?", t.name)
	args := []any{string(payload), now.UnixMilli(), id}
	if t.mode.Scoped() {
		stmt += " AND owner_key = ?"
		args = append(args, t.ownerKey())
	}
	if _, err := t.reg.eng.Execute(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update record %q in table %q: %w", id, t.name, err)
	}

	rec := &domain.Record{
		ID:        id,
		Fields:    validated,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: now,
	}
	t.reg.notify(t.name+":update", rec.Flatten())
	return rec, nil
}

// Delete removes the record with the given id under the current scope.
// Deleting a missing id is not an error, and the "<table>:delete" event
// is emitted either way: it signals intent, not a confirmed removal.
func (t *Table) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name)
	args := []any{id}
	if t.mode.Scoped() {
		stmt += " AND owner_key = ?"
		args = append(args, t.ownerKey())
	}
	if _, err := t.reg.eng.Execute(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to delete record %q from table %q: %w", id, t.name, err)
	}

	t.reg.notify(t.name+":delete", map[string]any{domain.FieldID: id})
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// FindByID returns the record with the given id, or nil when no such
// record is visible under the current scope.
func (t *Table) FindByID(ctx context.Context, id string) (*domain.Record, error) {
	stmt := fmt.Sprintf("SELECT id, data, created_at, updated_at FROM %s WHERE id = ?", t.name)
	args := []any{id}
	if t.mode.Scoped() {
		stmt += " AND owner_key = ?"
		args = append(args, t.ownerKey())
	}

	rec, err := scanRecord(t.reg.eng.QueryRow(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %q from table %q: %w", id, t.name, err)
	}
	return rec, nil
}

// Where starts a query with one predicate.
func (t *Table) Where(path string, op Op, value any) *Query {
	return newQuery(t).Where(path, op, value)
}

// OrderBy starts a query ordered by the given field path.
func (t *Table) OrderBy(path string, descending bool) *Query {
	return newQuery(t).OrderBy(path, descending)
}

// Limit starts a query capped at n rows.
func (t *Table) Limit(n int) *Query {
	return newQuery(t).Limit(n)
}

// GetAll returns every record visible under the current scope.
func (t *Table) GetAll(ctx context.Context) ([]*domain.Record, error) {
	return newQuery(t).Get(ctx)
}

// Count returns the number of records visible under the current scope.
func (t *Table) Count(ctx context.Context) (int, error) {
	return newQuery(t).Count(ctx)
}

package store

import (
	"context"
	"testing"

	"cellstore/internal/domain"
	"cellstore/internal/schema"
)

// newScoredTable registers a group-scoped table with a numeric field,
// used by the ordering and comparison tests.
func newScoredTable(t *testing.T, reg *Registry) *Table {
	t.Helper()
	sch := schema.New(
		schema.String("name", schema.Required()),
		schema.Number("score"),
	)
	table, err := reg.Table(context.Background(), "players", sch, domain.TableOptions{Mode: domain.ScopeGroup})
	assertNoError(t, err)
	return table
}

func seedPlayers(t *testing.T, table *Table) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []map[string]any{
		{"name": "alice", "score": 2},
		{"name": "bob", "score": 10},
		{"name": "carol", "score": 7},
		{"name": "alison", "score": 5},
	} {
		_, err := table.Create(ctx, p)
		assertNoError(t, err)
	}
}

// ============================================================================
// Operators
// ============================================================================

func TestQueryOperators(t *testing.T) {
	ctx := context.Background()

	t.Run("equals and notEquals", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		hits, err := players.Where("name", OpEquals, "bob").Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 1, len(hits))
		assertEqual(t, "bob", hits[0].Fields["name"])

		misses, err := players.Where("name", OpNotEquals, "bob").Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 3, len(misses))
	})

	t.Run("greaterThan and lessThan compare numerically", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		high, err := players.Where("score", OpGreaterThan, 5).Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 2, len(high))

		low, err := players.Where("score", OpLessThan, 5).Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 1, len(low))
		assertEqual(t, "alice", low[0].Fields["name"])
	})

	t.Run("substringMatch", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		hits, err := players.Where("name", OpSubstringMatch, "ali").Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 2, len(hits))
	})

	t.Run("predicates combine with AND", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		hits, err := players.
			Where("score", OpGreaterThan, 2).
			Where("name", OpSubstringMatch, "ali").
			Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 1, len(hits))
		assertEqual(t, "alison", hits[0].Fields["name"])
	})

	t.Run("unknown operator fails at execution", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)

		_, err := players.Where("name", "like", "a").Get(ctx)
		if err == nil {
			t.Fatal("expected an error for an unknown operator")
		}
	})

	t.Run("invalid field path fails at execution", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)

		for _, path := range []string{"nope", "name') OR ('1'='1", "", "a..b"} {
			_, err := players.Where(path, OpEquals, "x").Get(ctx)
			if err == nil {
				t.Fatalf("expected an error for path %q", path)
			}
		}
	})
}

// ============================================================================
// Ordering and Paging
// ============================================================================

func TestQueryOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("orders numbers numerically not lexically", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		rows, err := players.OrderBy("score", true).Get(ctx)
		assertNoError(t, err)

		names := make([]string, 0, len(rows))
		for _, r := range rows {
			names = append(names, r.Fields["name"].(string))
		}
		assertEqual(t, []string{"bob", "carol", "alison", "alice"}, names)
	})

	t.Run("last orderBy wins", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		rows, err := players.OrderBy("score", true).OrderBy("name", false).Get(ctx)
		assertNoError(t, err)
		assertEqual(t, "alice", rows[0].Fields["name"])
	})

	t.Run("limit and offset page the ordered result", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		page, err := players.OrderBy("score", false).Limit(2).Offset(1).Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 2, len(page))
		assertEqual(t, "alison", page[0].Fields["name"])
		assertEqual(t, "carol", page[1].Fields["name"])
	})

	t.Run("offset without limit", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		rest, err := players.OrderBy("score", false).Offset(2).Get(ctx)
		assertNoError(t, err)
		assertEqual(t, 2, len(rest))
	})
}

// ============================================================================
// Aggregation
// ============================================================================

func TestQueryCount(t *testing.T) {
	ctx := context.Background()

	t.Run("count ignores ordering, limit and offset", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		n, err := players.OrderBy("score", true).Limit(1).Offset(2).Count(ctx)
		assertNoError(t, err)
		assertEqual(t, 4, n)
	})

	t.Run("count respects predicates", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		seedPlayers(t, players)

		n, err := players.Where("score", OpGreaterThan, 4).Count(ctx)
		assertNoError(t, err)
		assertEqual(t, 3, n)
	})
}

// ============================================================================
// First and Generated Fields
// ============================================================================

func TestQueryFirst(t *testing.T) {
	ctx := context.Background()

	t.Run("first returns nil on empty result", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)

		rec, err := players.Where("name", OpEquals, "nobody").First(ctx)
		assertNoError(t, err)
		assertNil(t, rec)
	})

	t.Run("generated fields are queryable", func(t *testing.T) {
		reg := newTestRegistry(t, "tenant-a")
		players := newScoredTable(t, reg)
		created, err := players.Create(ctx, map[string]any{"name": "alice"})
		assertNoError(t, err)

		rec, err := players.Where("id", OpEquals, created.ID).First(ctx)
		assertNoError(t, err)
		assertNotNil(t, rec)

		newer, err := players.Where("createdAt", OpGreaterThan, created.CreatedAt.UnixMilli()).Count(ctx)
		assertNoError(t, err)
		assertEqual(t, 0, newer)
	})
}

package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cellstore/internal/domain"
)

// ============================================================================
// Operators
// ============================================================================

// Op is a comparison operator accepted by Where. The set is closed; any
// other value fails the query at execution time.
type Op string

const (
	OpEquals         Op = "equals"
	OpNotEquals      Op = "notEquals"
	OpGreaterThan    Op = "greaterThan"
	OpLessThan       Op = "lessThan"
	OpSubstringMatch Op = "substringMatch"
)

var sqlOps = map[Op]string{
	OpEquals:      "=",
	OpNotEquals:   "!=",
	OpGreaterThan: ">",
	OpLessThan:    "<",
}

var pathSegmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ============================================================================
// Query
// ============================================================================

type predicate struct {
	expr string
	op   Op
	val  any
}

// Query is an immutable-by-convention builder over one table. Each
// chained call mutates and returns the same query; builders are cheap and
// created fresh by Table.Where/OrderBy/Limit, so sharing is not a
// concern. The owner partition is captured when the builder is created,
// from the scope active at that moment.
//
// Builder-time errors (bad operator, bad field path) are held and
// surfaced by Get/First/Count so chains stay fluent.
type Query struct {
	t      *Table
	owner  string
	scoped bool

	preds     []predicate
	orderExpr string
	orderDesc bool
	limit     int
	offset    int

	err error
}

func newQuery(t *Table) *Query {
	q := &Query{t: t, limit: -1, offset: -1}
	if t.mode.Scoped() {
		q.scoped = true
		q.owner = t.ownerKey()
	}
	return q
}

// Where adds one predicate. Values always travel as bind parameters;
// field paths are compiled to column or json_extract expressions after
// validation, so caller input never reaches the statement text.
func (q *Query) Where(path string, op Op, value any) *Query {
	if q.err != nil {
		return q
	}
	expr, err := q.columnExpr(path)
	if err != nil {
		q.err = err
		return q
	}
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpSubstringMatch:
	default:
		q.err = fmt.Errorf("unknown operator %q", op)
		return q
	}
	q.preds = append(q.preds, predicate{expr: expr, op: op, val: value})
	return q
}

// OrderBy sets the single ordering term. Calling it again replaces the
// previous term; the last call wins.
func (q *Query) OrderBy(path string, descending bool) *Query {
	if q.err != nil {
		return q
	}
	expr, err := q.columnExpr(path)
	if err != nil {
		q.err = err
		return q
	}
	q.orderExpr = expr
	q.orderDesc = descending
	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n rows of the ordered result.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// columnExpr compiles a field path to a SQL expression. The generated
// timestamp fields map to their native columns so comparisons and
// ordering stay numeric; everything else extracts from the JSON payload.
// The leading segment must name a schema field and every segment must be
// a plain identifier.
func (q *Query) columnExpr(path string) (string, error) {
	switch path {
	case domain.FieldID:
		return "id", nil
	case domain.FieldCreatedAt:
		return "created_at", nil
	case domain.FieldUpdatedAt:
		return "updated_at", nil
	}

	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if !pathSegmentRe.MatchString(seg) {
			return "", fmt.Errorf("invalid field path %q", path)
		}
	}
	if !q.t.schema.Has(segments[0]) {
		return "", fmt.Errorf("unknown field %q in table %q", segments[0], q.t.name)
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", strings.Join(segments, ".")), nil
}

// buildWhere renders the WHERE clause and its bind arguments, including
// the owner partition predicate when the table is scoped.
func (q *Query) buildWhere() (string, []any) {
	clauses := make([]string, 0, len(q.preds)+1)
	args := make([]any, 0, len(q.preds)+1)

	if q.scoped {
		clauses = append(clauses, "owner_key = ?")
		args = append(args, q.owner)
	}
	for _, p := range q.preds {
		if p.op == OpSubstringMatch {
			clauses = append(clauses, fmt.Sprintf("instr(%s, ?) > 0", p.expr))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s %s ?", p.expr, sqlOps[p.op]))
		}
		args = append(args, p.val)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Get executes the query and returns all matching records.
func (q *Query) Get(ctx context.Context) ([]*domain.Record, error) {
	if q.err != nil {
		return nil, q.err
	}

	where, args := q.buildWhere()
	stmt := fmt.Sprintf("SELECT id, data, created_at, updated_at FROM %s%s", q.t.name, where)

	if q.orderExpr != "" {
		dir := "ASC"
		if q.orderDesc {
			dir = "DESC"
		}
		stmt += fmt.Sprintf(" ORDER BY %s %s", q.orderExpr, dir)
	}
	if q.limit >= 0 || q.offset >= 0 {
		// sqlite requires a LIMIT for OFFSET to apply; -1 means unbounded.
		limit := q.limit
		if limit < 0 {
			limit = -1
		}
		stmt += " LIMIT ?"
		args = append(args, limit)
		if q.offset >= 0 {
			stmt += " OFFSET ?"
			args = append(args, q.offset)
		}
	}

	rows, err := q.t.reg.eng.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query on table %q failed: %w", q.t.name, err)
	}
	return collectRecords(rows)
}

// First returns the first matching record, or nil when nothing matches.
func (q *Query) First(ctx context.Context) (*domain.Record, error) {
	records, err := q.Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Count returns the number of matching rows. Ordering, limit and offset
// are ignored: the count reflects the predicate set alone.
func (q *Query) Count(ctx context.Context) (int, error) {
	if q.err != nil {
		return 0, q.err
	}

	where, args := q.buildWhere()
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.t.name, where)

	var n int
	if err := q.t.reg.eng.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count on table %q failed: %w", q.t.name, err)
	}
	return n, nil
}

package duckdb

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errNoTable = errors.New("table name is required")

// Builder assembles SELECT and DELETE statements with positional arguments.
// Conditions added through Where and its helpers are joined with AND.
type Builder struct {
	table      string
	columns    []string
	where      []condition
	groupBy    []string
	orderBy    []string
	limit      int
	offset     int
	timeColumn string
}

type condition struct {
	expr string
	args []any
}

// NewQueryBuilder starts a query against table. The time column defaults to
// "timestamp".
func NewQueryBuilder(table string) *Builder {
	return &Builder{table: table, timeColumn: "timestamp"}
}

// Select appends result columns or expressions, e.g. "AVG(total_time) AS avg_time".
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// TimeColumn changes the column used by Since, Before and TimeRange.
func (b *Builder) TimeColumn(name string) *Builder {
	b.timeColumn = name
	return b
}

// Since keeps rows at or after t. A zero t adds nothing.
func (b *Builder) Since(t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	return b.Where(b.timeColumn+" >= ?", t)
}

// Before keeps rows strictly before t. A zero t adds nothing.
func (b *Builder) Before(t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	return b.Where(b.timeColumn+" < ?", t)
}

// TimeRange keeps rows in [start, end].
func (b *Builder) TimeRange(start, end time.Time) *Builder {
	return b.Where(fmt.Sprintf("%s >= ? AND %s <= ?", b.timeColumn, b.timeColumn), start, end)
}

// Where adds a raw condition.
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.where = append(b.where, condition{expr: expr, args: args})
	return b
}

// Eq adds column = value. Empty strings are treated as a wildcard and skipped.
func (b *Builder) Eq(column string, value any) *Builder {
	if s, ok := value.(string); ok && s == "" {
		return b
	}
	return b.Where(column+" = ?", value)
}

// In adds column IN (...). An empty list is skipped.
func (b *Builder) In(column string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.Where(fmt.Sprintf("%s IN (%s)", column, marks), values...)
}

// Gte adds column >= value.
func (b *Builder) Gte(column string, value any) *Builder { return b.Where(column+" >= ?", value) }

// Gt adds column > value.
func (b *Builder) Gt(column string, value any) *Builder { return b.Where(column+" > ?", value) }

// Lt adds column < value.
func (b *Builder) Lt(column string, value any) *Builder { return b.Where(column+" < ?", value) }

// GroupBy appends grouping columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// OrderBy appends sort keys. A leading "-" sorts descending.
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		if strings.HasPrefix(col, "-") {
			col = col[1:] + " DESC"
		}
		b.orderBy = append(b.orderBy, col)
	}
	return b
}

// Limit caps the number of rows. Zero or negative means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

func (b *Builder) writeWhere(sb *strings.Builder, args []any) []any {
	if len(b.where) == 0 {
		return args
	}
	exprs := make([]string, len(b.where))
	for i, c := range b.where {
		exprs[i] = c.expr
		args = append(args, c.args...)
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(exprs, " AND "))
	return args
}

// Build renders the SELECT statement. It can be called repeatedly.
func (b *Builder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errNoTable
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	args := b.writeWhere(&sb, make([]any, 0))

	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	if b.offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, b.offset)
	}
	return sb.String(), args, nil
}

// BuildDelete renders a DELETE with the builder's conditions. Columns,
// grouping, ordering and paging are ignored.
func (b *Builder) BuildDelete() (string, []any, error) {
	if b.table == "" {
		return "", nil, errNoTable
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	args := b.writeWhere(&sb, make([]any, 0))
	return sb.String(), args, nil
}

// MustBuild is Build for statements that cannot fail, such as package-level queries.
func (b *Builder) MustBuild() (string, []any) {
	q, args, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q, args
}

package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Columns narrows the select list. By default every column of T is selected.
func (q *SelectQuery[T]) Columns(cols ...string) *SelectQuery[T] {
	q.columns = cols
	return q
}

// Where adds a WHERE condition.
func (q *SelectQuery[T]) Where(conditions ...Condition) *SelectQuery[T] {
	q.where = append(q.where, conditions...)
	return q
}

// And adds an AND condition (alias for Where).
func (q *SelectQuery[T]) And(condition Condition) *SelectQuery[T] {
	condition.Logic = LogicAnd
	return q.Where(condition)
}

// Or adds an OR condition.
func (q *SelectQuery[T]) Or(condition Condition) *SelectQuery[T] {
	condition.Logic = LogicOr
	return q.Where(condition)
}

// OrderBy adds an ORDER BY clause.
func (q *SelectQuery[T]) OrderBy(column string, direction OrderDirection) *SelectQuery[T] {
	q.orderBy = append(q.orderBy, OrderBy{Column: column, Direction: direction})
	return q
}

// OrderByAsc adds an ascending ORDER BY clause.
func (q *SelectQuery[T]) OrderByAsc(column string) *SelectQuery[T] {
	return q.OrderBy(column, Asc)
}

// OrderByDesc adds a descending ORDER BY clause.
func (q *SelectQuery[T]) OrderByDesc(column string) *SelectQuery[T] {
	return q.OrderBy(column, Desc)
}

// Limit sets the LIMIT clause.
func (q *SelectQuery[T]) Limit(limit int) *SelectQuery[T] {
	q.limit = &limit
	return q
}

// Offset sets the OFFSET clause.
func (q *SelectQuery[T]) Offset(offset int) *SelectQuery[T] {
	q.offset = &offset
	return q
}

// ForUpdate locks the selected rows until the transaction ends.
func (q *SelectQuery[T]) ForUpdate() *SelectQuery[T] {
	q.forUpdate = true
	return q
}

// Preload names relationship fields of T to load after the main query,
// e.g. Preload("Category", "Discounts").
func (q *SelectQuery[T]) Preload(fields ...string) *SelectQuery[T] {
	q.preloads = append(q.preloads, fields...)
	return q
}

// InnerJoin adds an INNER JOIN. The condition is raw SQL.
func (q *SelectQuery[T]) InnerJoin(table, condition string) *SelectQuery[T] {
	q.joins = append(q.joins, Join{Type: InnerJoin, Table: table, Condition: condition})
	return q
}

// LeftJoin adds a LEFT JOIN. The condition is raw SQL.
func (q *SelectQuery[T]) LeftJoin(table, condition string) *SelectQuery[T] {
	q.joins = append(q.joins, Join{Type: LeftJoin, Table: table, Condition: condition})
	return q
}

func (q *SelectQuery[T]) writeFrom(sb *strings.Builder) {
	sb.WriteString(" FROM ")
	sb.WriteString(schema.QuoteIdent(q.table.Name))
	for _, join := range q.joins {
		fmt.Fprintf(sb, " %s %s ON %s", join.Type, schema.QuoteIdent(join.Table), join.Condition)
	}
}

func (q *SelectQuery[T]) writeWhere(sb *strings.Builder) ([]any, error) {
	if len(q.where) == 0 {
		return nil, nil
	}
	wb := NewWhereBuilder()
	wb.Add(q.where...)
	whereSQL, args, err := wb.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	sb.WriteString(" ")
	sb.WriteString(whereSQL)
	return args, nil
}

// ToSQL generates the SQL query and arguments.
func (q *SelectQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.columns) == 0 {
		sb.WriteString(strings.Join(qualifiedColumns(q.table), ", "))
	} else {
		sb.WriteString(strings.Join(quoteColumns(q.columns), ", "))
	}

	q.writeFrom(&sb)
	args, err := q.writeWhere(&sb)
	if err != nil {
		return "", nil, err
	}

	if len(q.orderBy) > 0 {
		parts := make([]string, len(q.orderBy))
		for i, order := range q.orderBy {
			parts[i] = quoteColumn(order.Column) + " " + string(order.Direction)
			if order.NullsPos != NullsDefault {
				parts[i] += " " + string(order.NullsPos)
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if q.limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *q.offset)
	}
	if q.forUpdate {
		sb.WriteString(" FOR UPDATE")
	}

	return sb.String(), args, nil
}

// All executes the query and returns all results.
func (q *SelectQuery[T]) All(ctx context.Context) ([]T, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scanIntoStruct(rows, &item, q.table); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, runtime.ClassifyError(err)
	}

	if len(q.preloads) > 0 && len(results) > 0 {
		if err := loadRelationships(ctx, q.q, q.table, &results, q.preloads); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// First returns the first matching row, or runtime.ErrNotFound.
func (q *SelectQuery[T]) First(ctx context.Context) (*T, error) {
	q.Limit(1)

	results, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", q.table.Name, runtime.ErrNotFound)
	}
	return &results[0], nil
}

// CountSQL generates the COUNT(*) form of the query.
func (q *SelectQuery[T]) CountSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)")
	q.writeFrom(&sb)
	args, err := q.writeWhere(&sb)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

// Count returns the number of matching rows.
func (q *SelectQuery[T]) Count(ctx context.Context) (int64, error) {
	sql, args, err := q.CountSQL()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := q.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Exists reports whether any row matches.
func (q *SelectQuery[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

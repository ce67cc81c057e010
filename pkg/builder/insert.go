package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/storefront/pkg/schema"
)

// Values sets the values to insert (single or multiple rows).
func (q *InsertQuery[T]) Values(values ...T) *InsertQuery[T] {
	q.values = append(q.values, values...)
	return q
}

// Returning specifies columns to return after insert.
func (q *InsertQuery[T]) Returning(columns ...string) *InsertQuery[T] {
	q.returning = columns
	return q
}

// OnConflictDoNothing skips rows that would violate a unique constraint,
// optionally restricted to the constraint over columns.
func (q *InsertQuery[T]) OnConflictDoNothing(columns ...string) *InsertQuery[T] {
	q.onConflict = &OnConflict{Columns: columns}
	return q
}

// ToSQL generates the INSERT SQL and arguments.
//
// The column list is the union over all rows; a row that leaves a column
// to its default gets the DEFAULT keyword in that position.
func (q *InsertQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if len(q.values) == 0 {
		return "", nil, fmt.Errorf("no values to insert")
	}

	rows := make([][]insertValue, len(q.values))
	for i, v := range q.values {
		row, err := structToValues(v, q.table)
		if err != nil {
			return "", nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = row
	}

	// Every row has the same columns in the same order; only omit differs.
	used := make([]bool, len(rows[0]))
	for _, row := range rows {
		for j, v := range row {
			if !v.omit {
				used[j] = true
			}
		}
	}

	var columns []string
	for j, v := range rows[0] {
		if used[j] {
			columns = append(columns, v.column)
		}
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("INSERT INTO ")
	sb.WriteString(schema.QuoteIdent(q.table.Name))

	if len(columns) == 0 {
		if len(rows) > 1 {
			return "", nil, fmt.Errorf("multi-row insert into %s has no explicit values", q.table.Name)
		}
		sb.WriteString(" DEFAULT VALUES")
	} else {
		sb.WriteString(" (")
		sb.WriteString(schema.QuoteIdents(columns))
		sb.WriteString(") VALUES ")

		tuples := make([]string, len(rows))
		for i, row := range rows {
			slots := make([]string, 0, len(columns))
			for j, v := range row {
				if !used[j] {
					continue
				}
				if v.omit {
					slots = append(slots, "DEFAULT")
					continue
				}
				args = append(args, v.value)
				slots = append(slots, fmt.Sprintf("$%d", len(args)))
			}
			tuples[i] = "(" + strings.Join(slots, ", ") + ")"
		}
		sb.WriteString(strings.Join(tuples, ", "))
	}

	if q.onConflict != nil {
		sb.WriteString(" ON CONFLICT")
		if len(q.onConflict.Columns) > 0 {
			sb.WriteString(" (")
			sb.WriteString(schema.QuoteIdents(q.onConflict.Columns))
			sb.WriteString(")")
		}
		sb.WriteString(" DO NOTHING")
	}

	writeReturning(&sb, q.returning)
	return sb.String(), args, nil
}

// Exec executes the INSERT and returns the number of inserted rows.
func (q *InsertQuery[T]) Exec(ctx context.Context) (int64, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	return execCount(ctx, q.q, sql, args, len(q.returning) > 0)
}

// ExecReturning executes the INSERT and returns the stored rows, including
// the identity and server-assigned timestamps.
func (q *InsertQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if q.err == nil && len(q.returning) == 0 {
		q.returning = q.table.ColumnNames()
	}
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	return queryAll[T](ctx, q.q, q.table, sql, args)
}

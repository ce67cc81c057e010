package builder

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// scanIntoStruct scans the current row into dest, matching result columns
// to fields by column name. Unknown result columns are discarded.
func scanIntoStruct(rows pgx.Rows, dest any, table *schema.TableMetadata) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Pointer || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct, got %T", dest)
	}
	destValue = destValue.Elem()

	fields := rows.FieldDescriptions()
	targets := make([]any, len(fields))
	for i, fd := range fields {
		col := table.GetColumnByName(fd.Name)
		if col == nil {
			targets[i] = new(any)
			continue
		}
		field := destValue.FieldByName(col.GoField)
		if !field.IsValid() || !field.CanSet() {
			targets[i] = new(any)
			continue
		}
		targets[i] = field.Addr().Interface()
	}

	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("failed to scan %s row: %w", table.Name, runtime.ClassifyError(err))
	}
	return nil
}

// insertValue is one column of one row headed for INSERT.
type insertValue struct {
	column string
	value  any
	// omit leaves the column to its database default.
	omit bool
}

// structToValues extracts the insertable columns of model. Server-managed
// timestamps are always omitted; zero identity, auto-increment and
// defaulted columns are omitted so the database fills them.
func structToValues(model any, table *schema.TableMetadata) ([]insertValue, error) {
	modelValue := reflect.ValueOf(model)
	if modelValue.Kind() == reflect.Pointer {
		modelValue = modelValue.Elem()
	}
	if modelValue.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelValue.Kind())
	}

	values := make([]insertValue, 0, len(table.Columns))
	for _, col := range table.Columns {
		if col.Managed() {
			continue
		}
		field := modelValue.FieldByName(col.GoField)
		if !field.IsValid() {
			continue
		}
		omit := field.IsZero() && (col.Default != nil || col.Identity != nil || col.AutoIncrement)
		values = append(values, insertValue{column: col.Name, value: field.Interface(), omit: omit})
	}
	return values, nil
}

func writeReturning(sb *strings.Builder, returning []string) {
	if len(returning) == 0 {
		return
	}
	sb.WriteString(" RETURNING ")
	sb.WriteString(strings.Join(quoteColumns(returning), ", "))
}

// execCount runs sql and returns the number of affected rows. With a
// RETURNING clause the returned rows are counted instead.
func execCount(ctx context.Context, q Querier, sql string, args []any, returning bool) (int64, error) {
	if !returning {
		return q.Exec(ctx, sql, args...)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		count++
	}
	return count, runtime.ClassifyError(rows.Err())
}

// queryAll runs sql and scans every row into a T.
func queryAll[T any](ctx context.Context, q Querier, table *schema.TableMetadata, sql string, args []any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scanIntoStruct(rows, &item, table); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, runtime.ClassifyError(err)
	}
	return results, nil
}

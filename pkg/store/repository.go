package store

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/shopspring/decimal"
)

// ListOptions filters and pages a List call.
type ListOptions struct {
	Where   []builder.Condition
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
	// Preload names relationship fields to load with the rows.
	Preload []string
}

// Repository implements create, read, update and delete for one model,
// addressed by its single-column primary key.
type Repository[T any] struct {
	s     *Store
	table *schema.TableMetadata
	pk    string
	err   error
}

func newRepository[T any](s *Store) *Repository[T] {
	var zero T
	r := &Repository[T]{s: s}
	r.table, r.err = registry.GetOrRegister(zero)
	if r.err != nil {
		r.err = fmt.Errorf("%w: %w", runtime.ErrInvalidModel, r.err)
		return r
	}
	if pk := r.table.PrimaryKey; pk == nil || len(pk.Columns) != 1 {
		r.err = fmt.Errorf("%s: %w", r.table.Name, runtime.ErrNoPrimaryKey)
		return r
	}
	r.pk = r.table.PrimaryKey.Columns[0]
	return r
}

// Table returns the metadata of the repository's table.
func (r *Repository[T]) Table() *schema.TableMetadata {
	return r.table
}

// Create validates m, inserts it and refreshes m with the stored row, so
// identities and server-assigned timestamps are filled in.
func (r *Repository[T]) Create(ctx context.Context, m *T) error {
	if r.err != nil {
		return r.err
	}
	if err := r.s.check(r.table.Name, m); err != nil {
		return err
	}
	rows, err := builder.Insert[T](r.s.q).Values(*m).ExecReturning(ctx)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", r.table.Name, err)
	}
	*m = rows[0]
	r.s.logger.Debug("created", "table", r.table.Name, r.pk, r.key(m))
	return nil
}

// Get returns the row with the given primary key or runtime.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id any) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	return builder.Select[T](r.s.q).Where(builder.Eq(r.pk, id)).First(ctx)
}

// List returns rows matching opts, ordered by primary key unless
// opts.OrderBy is set.
func (r *Repository[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	if r.err != nil {
		return nil, r.err
	}
	q := builder.Select[T](r.s.q).Where(opts.Where...)
	order := opts.OrderBy
	if order == "" {
		order = r.pk
	}
	if opts.Desc {
		q.OrderByDesc(order)
	} else {
		q.OrderByAsc(order)
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q.Offset(opts.Offset)
	}
	if len(opts.Preload) > 0 {
		q.Preload(opts.Preload...)
	}
	return q.All(ctx)
}

// Count returns the number of rows matching where.
func (r *Repository[T]) Count(ctx context.Context, where ...builder.Condition) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return builder.Select[T](r.s.q).Where(where...).Count(ctx)
}

// Update sets fields (keyed by column name) on the row with the given
// primary key and returns the stored row. The merged row is validated
// before anything is written. The primary key and server-managed
// timestamps cannot be set.
func (r *Repository[T]) Update(ctx context.Context, id any, fields map[string]any) (*T, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("update %s: no fields given", r.table.Name)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	columns := slices.Sorted(maps.Keys(fields))

	q := builder.Update[T](r.s.q)
	for _, column := range columns {
		value, err := r.assign(current, column, fields[column])
		if err != nil {
			return nil, err
		}
		q.Set(column, value)
	}
	if err := r.s.check(r.table.Name, current); err != nil {
		return nil, err
	}

	rows, err := q.Where(builder.Eq(r.pk, id)).ExecReturning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", r.table.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", r.table.Name, runtime.ErrNotFound)
	}
	r.s.logger.Debug("updated", "table", r.table.Name, r.pk, id, "columns", columns)
	return &rows[0], nil
}

// assign writes value into the field behind column and returns the value
// as stored in the field, converted to the field's type.
func (r *Repository[T]) assign(m *T, column string, value any) (any, error) {
	col := r.table.GetColumnByName(column)
	switch {
	case col == nil:
		return nil, fmt.Errorf("%s has no column %q", r.table.Name, column)
	case col.Managed():
		return nil, fmt.Errorf("%s.%s: %w", r.table.Name, column, runtime.ErrManagedColumn)
	case column == r.pk:
		return nil, fmt.Errorf("%s.%s: primary key cannot be updated", r.table.Name, column)
	}

	field := reflect.ValueOf(m).Elem().FieldByName(col.GoField)
	if err := setField(field, value); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", r.table.Name, column, err)
	}
	return field.Interface(), nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// setField stores value in field, converting between named and plain
// types of the same kind. Pointer fields accept the bare value or nil.
func setField(field reflect.Value, value any) error {
	if value == nil {
		if field.Kind() != reflect.Pointer {
			return fmt.Errorf("column is not nullable")
		}
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	target := field.Type()
	wrap := target.Kind() == reflect.Pointer && v.Kind() != reflect.Pointer
	if wrap {
		target = target.Elem()
	}

	switch {
	case v.Type().AssignableTo(target):
	case target == decimalType:
		d, err := toDecimal(value)
		if err != nil {
			return err
		}
		v = reflect.ValueOf(d)
	case v.Type().ConvertibleTo(target) && (v.Kind() == reflect.String) == (target.Kind() == reflect.String):
		v = v.Convert(target)
	default:
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}

	if wrap {
		ptr := reflect.New(target)
		ptr.Elem().Set(v)
		v = ptr
	}
	field.Set(v)
	return nil
}

func toDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return decimal.Decimal{}, fmt.Errorf("cannot convert %T to a decimal", value)
}

// Delete removes the row with the given primary key. Deleting a missing
// row returns runtime.ErrNotFound; a row other rows still reference fails
// with runtime.ErrProtected.
func (r *Repository[T]) Delete(ctx context.Context, id any) error {
	if r.err != nil {
		return r.err
	}
	n, err := builder.Delete[T](r.s.q).Where(builder.Eq(r.pk, id)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s %v: %w", r.table.Name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", r.table.Name, id, runtime.ErrNotFound)
	}
	r.s.logger.Debug("deleted", "table", r.table.Name, r.pk, id)
	return nil
}

func (r *Repository[T]) key(m *T) any {
	col := r.table.GetColumnByName(r.pk)
	return reflect.ValueOf(m).Elem().FieldByName(col.GoField).Interface()
}

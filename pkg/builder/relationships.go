package builder

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// loadRelationships fills the named relationship fields of every element
// of results (a pointer to a slice of structs). Each relationship costs one
// query, using = ANY($1) over the collected keys.
func loadRelationships(ctx context.Context, q Querier, table *schema.TableMetadata, results any, fields []string) error {
	slice := reflect.ValueOf(results)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("results must be a pointer to slice, got %T", results)
	}
	slice = slice.Elem()
	if slice.Len() == 0 {
		return nil
	}

	for _, field := range fields {
		rel := table.GetRelationship(field)
		if rel == nil {
			return fmt.Errorf("relationship %s not found on %s", field, table.Name)
		}

		target, err := registry.GetOrRegister(rel.TargetType)
		if err != nil {
			return fmt.Errorf("relationship %s: %w", field, err)
		}

		l := loader{q: q, source: table, target: target, rel: rel, results: slice}
		switch rel.Type {
		case schema.BelongsTo:
			err = l.belongsTo(ctx)
		case schema.HasOne, schema.HasMany:
			err = l.hasOneOrMany(ctx)
		case schema.ManyToMany:
			err = l.manyToMany(ctx)
		default:
			err = fmt.Errorf("unsupported relationship type: %s", rel.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to load relationship %s: %w", field, err)
		}
	}
	return nil
}

type loader struct {
	q       Querier
	source  *schema.TableMetadata
	target  *schema.TableMetadata
	rel     *schema.RelationshipMetadata
	results reflect.Value
}

// columnValue reads column of item, dereferencing pointers. ok is false
// for a NULL pointer or an unknown column.
func columnValue(table *schema.TableMetadata, item reflect.Value, column string) (any, bool) {
	col := table.GetColumnByName(column)
	if col == nil {
		return nil, false
	}
	field := item.FieldByName(col.GoField)
	if !field.IsValid() {
		return nil, false
	}
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return nil, false
		}
		field = field.Elem()
	}
	return field.Interface(), true
}

func (l loader) item(i int) reflect.Value {
	item := l.results.Index(i)
	if item.Kind() == reflect.Pointer {
		item = item.Elem()
	}
	return item
}

// collect gathers the distinct values of column over all results.
func (l loader) collect(column string) ([]any, map[any][]int) {
	var keys []any
	index := make(map[any][]int)
	for i := 0; i < l.results.Len(); i++ {
		v, ok := columnValue(l.source, l.item(i), column)
		if !ok {
			continue
		}
		if _, seen := index[v]; !seen {
			keys = append(keys, v)
		}
		index[v] = append(index[v], i)
	}
	return keys, index
}

func (l loader) selectTargets(ctx context.Context, where string, keys []any) ([]reflect.Value, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s %s",
		strings.Join(qualifiedColumns(l.target), ", "), schema.QuoteIdent(l.target.Name), where)
	rows, err := l.q.Query(ctx, sql, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reflect.Value
	for rows.Next() {
		related := reflect.New(l.target.GoType)
		if err := scanIntoStruct(rows, related.Interface(), l.target); err != nil {
			return nil, err
		}
		out = append(out, related)
	}
	return out, runtime.ClassifyError(rows.Err())
}

// assign stores related (a pointer to a target struct) in the relationship
// field of result i, appending for slice fields.
func (l loader) assign(i int, related reflect.Value) {
	field := l.item(i).FieldByName(l.rel.SourceField)
	if !field.IsValid() || !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.Slice:
		elem := related.Elem()
		if field.Type().Elem().Kind() == reflect.Pointer {
			elem = related
		}
		field.Set(reflect.Append(field, elem))
	case reflect.Pointer:
		field.Set(related)
	default:
		field.Set(related.Elem())
	}
}

// resetSlices makes every slice field empty rather than nil, so a loaded
// relationship with no rows is distinguishable from one never loaded.
func (l loader) resetSlices() {
	for i := 0; i < l.results.Len(); i++ {
		field := l.item(i).FieldByName(l.rel.SourceField)
		if field.IsValid() && field.CanSet() && field.Kind() == reflect.Slice {
			field.Set(reflect.MakeSlice(field.Type(), 0, 0))
		}
	}
}

// belongsTo: source.foreign_key -> target.references.
func (l loader) belongsTo(ctx context.Context) error {
	keys, index := l.collect(l.rel.ForeignKey)
	if len(keys) == 0 {
		return nil
	}
	where := fmt.Sprintf("WHERE %s = ANY($1)", schema.QuoteIdent(l.rel.References))
	related, err := l.selectTargets(ctx, where, keys)
	if err != nil {
		return err
	}
	for _, r := range related {
		v, ok := columnValue(l.target, r.Elem(), l.rel.References)
		if !ok {
			continue
		}
		for _, i := range index[v] {
			l.assign(i, r)
		}
	}
	return nil
}

// hasOne / hasMany: target.foreign_key -> source.references.
func (l loader) hasOneOrMany(ctx context.Context) error {
	l.resetSlices()
	keys, index := l.collect(l.rel.References)
	if len(keys) == 0 {
		return nil
	}
	where := fmt.Sprintf("WHERE %s = ANY($1)", schema.QuoteIdent(l.rel.ForeignKey))
	if pk := l.target.PrimaryKey; pk != nil {
		where += " ORDER BY " + schema.QuoteIdents(pk.Columns)
	}
	related, err := l.selectTargets(ctx, where, keys)
	if err != nil {
		return err
	}
	for _, r := range related {
		v, ok := columnValue(l.target, r.Elem(), l.rel.ForeignKey)
		if !ok {
			continue
		}
		for _, i := range index[v] {
			l.assign(i, r)
		}
	}
	return nil
}

// manyToMany reads the join table and the targets in one query, selecting
// the join table's source key alongside the target columns.
func (l loader) manyToMany(ctx context.Context) error {
	l.resetSlices()
	keys, index := l.collect(l.rel.References)
	if len(keys) == 0 {
		return nil
	}

	targetRef := "id"
	if pk := l.target.PrimaryKey; pk != nil && len(pk.Columns) == 1 {
		targetRef = pk.Columns[0]
	}
	join := schema.QuoteIdent(*l.rel.JoinTable)
	sql := fmt.Sprintf("SELECT %s.%s, %s FROM %s INNER JOIN %s ON %s.%s = %s.%s WHERE %s.%s = ANY($1) ORDER BY %s.%s",
		join, schema.QuoteIdent(l.rel.ForeignKey),
		strings.Join(qualifiedColumns(l.target), ", "),
		schema.QuoteIdent(l.target.Name), join,
		join, schema.QuoteIdent(l.rel.TargetKey), schema.QuoteIdent(l.target.Name), schema.QuoteIdent(targetRef),
		join, schema.QuoteIdent(l.rel.ForeignKey),
		join, "id",
	)

	rows, err := l.q.Query(ctx, sql, keys)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		related := reflect.New(l.target.GoType)
		targets := []any{new(any)}
		fields := rows.FieldDescriptions()[1:]
		for _, fd := range fields {
			col := l.target.GetColumnByName(fd.Name)
			if col == nil {
				targets = append(targets, new(any))
				continue
			}
			targets = append(targets, related.Elem().FieldByName(col.GoField).Addr().Interface())
		}
		if err := rows.Scan(targets...); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", l.target.Name, runtime.ClassifyError(err))
		}

		owner := reflect.ValueOf(targets[0]).Elem().Interface()
		for _, i := range index[owner] {
			l.assign(i, related)
		}
	}
	return runtime.ClassifyError(rows.Err())
}

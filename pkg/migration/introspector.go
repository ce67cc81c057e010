package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// catalog is the subset of *pgxpool.Pool the introspector reads through.
type catalog interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Introspector reads the public schema back into table metadata.
type Introspector struct {
	db catalog
}

// NewIntrospector creates a new database introspector. pool is usually a
// *pgxpool.Pool.
func NewIntrospector(pool catalog) *Introspector {
	return &Introspector{db: pool}
}

// IntrospectSchema reads every table of the public schema except the
// migration bookkeeping table.
func (i *Introspector) IntrospectSchema(ctx context.Context) (map[string]*schema.TableMetadata, error) {
	names, err := i.getTableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	tables := make(map[string]*schema.TableMetadata, len(names))
	for _, name := range names {
		table, err := i.IntrospectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to introspect table %s: %w", name, err)
		}
		tables[name] = table
	}
	return tables, nil
}

// IntrospectTable reads a single table.
func (i *Introspector) IntrospectTable(ctx context.Context, tableName string) (*schema.TableMetadata, error) {
	table := &schema.TableMetadata{Name: tableName}

	var err error
	if table.Columns, err = i.getColumns(ctx, tableName); err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}
	if table.PrimaryKey, err = i.getPrimaryKey(ctx, tableName); err != nil {
		return nil, fmt.Errorf("failed to get primary key: %w", err)
	}
	if table.ForeignKeys, err = i.getForeignKeys(ctx, tableName); err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	if table.Indexes, err = i.getIndexes(ctx, tableName); err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}
	constraints, err := i.getConstraints(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get constraints: %w", err)
	}

	// Single-column UNIQUE is reported on the column, as the parser does.
	for _, c := range constraints {
		if c.Type == schema.UniqueConstraint && len(c.Columns) == 1 {
			if col := table.GetColumnByName(c.Columns[0]); col != nil {
				col.Unique = true
				continue
			}
		}
		table.Constraints = append(table.Constraints, c)
	}

	return table, nil
}

func (i *Introspector) getTableNames(ctx context.Context) ([]string, error) {
	rows, err := i.db.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type = 'BASE TABLE'
		  AND table_name <> 'schema_migrations'
		ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (i *Introspector) getColumns(ctx context.Context, tableName string) ([]schema.ColumnMetadata, error) {
	rows, err := i.db.Query(ctx, `
		SELECT
			column_name,
			data_type,
			udt_name,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			is_nullable,
			column_default,
			is_identity,
			identity_generation,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnMetadata
	for rows.Next() {
		var (
			col                         schema.ColumnMetadata
			dataType, udtName           string
			maxLength, precision, scale *int32
			isNullable, isIdentity      string
			identityGeneration          *string
			position                    int32
		)
		if err := rows.Scan(&col.Name, &dataType, &udtName, &maxLength, &precision, &scale,
			&isNullable, &col.Default, &isIdentity, &identityGeneration, &position); err != nil {
			return nil, err
		}

		col.SQLType = buildSQLType(dataType, udtName, maxLength, precision, scale)
		col.Nullable = isNullable == "YES"
		col.Position = int(position) - 1
		if isIdentity == "YES" && identityGeneration != nil {
			col.Identity = &schema.IdentityColumn{Generation: schema.IdentityGeneration(*identityGeneration)}
		}
		if col.Default != nil && strings.HasPrefix(*col.Default, "nextval(") {
			col.AutoIncrement = true
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (i *Introspector) getPrimaryKey(ctx context.Context, tableName string) (*schema.PrimaryKeyMetadata, error) {
	var pk schema.PrimaryKeyMetadata
	err := i.db.QueryRow(ctx, `
		SELECT
			con.conname,
			ARRAY(
				SELECT a.attname
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, n)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.n
			)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
		WHERE nsp.nspname = 'public' AND rel.relname = $1 AND con.contype = 'p'`,
		tableName).Scan(&pk.Name, &pk.Columns)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pk, nil
}

// getForeignKeys reads foreign keys from pg_constraint so that composite
// keys keep their column pairing.
func (i *Introspector) getForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKeyMetadata, error) {
	rows, err := i.db.Query(ctx, `
		SELECT
			con.conname,
			ARRAY(
				SELECT a.attname
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, n)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.n
			),
			ref.relname,
			ARRAY(
				SELECT a.attname
				FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, n)
				JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
				ORDER BY k.n
			),
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_class ref ON ref.oid = con.confrelid
		JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
		WHERE nsp.nspname = 'public' AND rel.relname = $1 AND con.contype = 'f'
		ORDER BY con.conname`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKeyMetadata
	for rows.Next() {
		var fk schema.ForeignKeyMetadata
		var onDelete, onUpdate string
		if err := rows.Scan(&fk.Name, &fk.Columns, &fk.ReferencedTable, &fk.ReferencedColumns, &onDelete, &onUpdate); err != nil {
			return nil, err
		}
		fk.OnDelete = referenceActionCode(onDelete)
		fk.OnUpdate = referenceActionCode(onUpdate)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// getIndexes returns standalone indexes only. Indexes backing a primary
// key or UNIQUE constraint belong to the constraint.
func (i *Introspector) getIndexes(ctx context.Context, tableName string) ([]schema.IndexMetadata, error) {
	rows, err := i.db.Query(ctx, `
		SELECT
			i.relname,
			array_agg(a.attname ORDER BY x.ordinality),
			ix.indisunique,
			am.amname
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON i.relam = am.oid
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS x(attnum, ordinality)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = x.attnum
		LEFT JOIN pg_constraint c ON c.conindid = ix.indexrelid
		WHERE t.relname = $1
			AND t.relnamespace = 'public'::regnamespace
			AND NOT ix.indisprimary
			AND c.conindid IS NULL
		GROUP BY i.relname, ix.indisunique, am.amname
		ORDER BY i.relname`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexMetadata
	for rows.Next() {
		var idx schema.IndexMetadata
		if err := rows.Scan(&idx.Name, &idx.Columns, &idx.Unique, &idx.Type); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

// getConstraints reads CHECK and UNIQUE constraints.
func (i *Introspector) getConstraints(ctx context.Context, tableName string) ([]schema.ConstraintMetadata, error) {
	rows, err := i.db.Query(ctx, `
		SELECT
			con.conname,
			con.contype::text,
			pg_get_constraintdef(con.oid),
			ARRAY(
				SELECT a.attname
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, n)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.n
			)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
		WHERE nsp.nspname = 'public'
			AND rel.relname = $1
			AND con.contype IN ('c', 'u')
		ORDER BY con.conname`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []schema.ConstraintMetadata
	for rows.Next() {
		var c schema.ConstraintMetadata
		var contype, def string
		if err := rows.Scan(&c.Name, &contype, &def, &c.Columns); err != nil {
			return nil, err
		}
		switch contype {
		case "c":
			c.Type = schema.CheckConstraint
			c.Expression = strings.TrimSpace(strings.TrimPrefix(def, "CHECK"))
		case "u":
			c.Type = schema.UniqueConstraint
		}
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

// buildSQLType spells an information_schema type the way struct tags do.
func buildSQLType(dataType, udtName string, maxLength, precision, scale *int32) string {
	switch dataType {
	case "character varying":
		if maxLength != nil {
			return fmt.Sprintf("varchar(%d)", *maxLength)
		}
		return "varchar"
	case "character":
		if maxLength != nil {
			return fmt.Sprintf("char(%d)", *maxLength)
		}
		return "char"
	case "numeric":
		if precision != nil && scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *precision, *scale)
		}
		return "numeric"
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// referenceActionCode decodes pg_constraint.confdeltype / confupdtype.
func referenceActionCode(code string) schema.ReferenceAction {
	switch code {
	case "c":
		return schema.Cascade
	case "n":
		return schema.SetNull
	case "d":
		return schema.SetDefault
	case "r":
		return schema.Restrict
	default:
		return schema.NoAction
	}
}

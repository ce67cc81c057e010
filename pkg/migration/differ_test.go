package migration

import (
	"testing"

	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDiffer_NewAndDroppedTables(t *testing.T) {
	code := byName(parse(t, shopCategory{}, shopProduct{}))
	db := map[string]*schema.TableMetadata{
		"legacy": {Name: "legacy", Columns: []schema.ColumnMetadata{{Name: "id", SQLType: "integer"}}},
	}

	diff := NewDiffer().Compare(code, db)

	require.Len(t, diff.TablesAdded, 2)
	assert.Equal(t, "categories", diff.TablesAdded[0].Name)
	assert.Equal(t, "products", diff.TablesAdded[1].Name)
	require.Len(t, diff.TablesDropped, 1)
	assert.Equal(t, "legacy", diff.TablesDropped[0].Name)
	assert.True(t, diff.HasChanges())
}

func TestDiffer_IdenticalSchemas(t *testing.T) {
	code := byName(parse(t, shopProduct{}, shopComment{}))
	db := byName(parse(t, shopProduct{}, shopComment{}))

	diff := NewDiffer().Compare(code, db)
	assert.False(t, diff.HasChanges())
}

func TestDiffer_IntrospectedSpellings(t *testing.T) {
	code := &schema.TableMetadata{
		Name: "comments",
		Columns: []schema.ColumnMetadata{
			{Name: "id", SQLType: "bigint", Identity: &schema.IdentityColumn{Generation: schema.IdentityByDefault}},
			{Name: "user", SQLType: "varchar(255)"},
			{Name: "status", SQLType: "varchar(2)", Default: strPtr("'W'")},
			{Name: "datetime_created", SQLType: "timestamptz", Default: strPtr("NOW()")},
			{Name: "rating", SQLType: "numeric(6, 2)", Nullable: true},
		},
	}
	db := &schema.TableMetadata{
		Name: "comments",
		Columns: []schema.ColumnMetadata{
			{Name: "id", SQLType: "int8", Identity: &schema.IdentityColumn{Generation: schema.IdentityByDefault}},
			{Name: "user", SQLType: "character varying(255)"},
			{Name: "status", SQLType: "character varying(2)", Default: strPtr("'W'::character varying")},
			{Name: "datetime_created", SQLType: "timestamp with time zone", Default: strPtr("now()")},
			{Name: "rating", SQLType: "numeric(6,2)", Nullable: true},
		},
	}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"comments": code},
		map[string]*schema.TableMetadata{"comments": db},
	)
	assert.False(t, diff.HasChanges(), "unexpected diff: %+v", diff.TablesModified)
}

func TestDiffer_ColumnChanges(t *testing.T) {
	code := &schema.TableMetadata{
		Name: "products",
		Columns: []schema.ColumnMetadata{
			{Name: "title", SQLType: "varchar(255)"},
			{Name: "inventory", SQLType: "integer", Default: strPtr("0")},
			{Name: "slug", SQLType: "varchar(50)"},
		},
	}
	db := &schema.TableMetadata{
		Name: "products",
		Columns: []schema.ColumnMetadata{
			{Name: "title", SQLType: "varchar(100)"},
			{Name: "inventory", SQLType: "integer", Nullable: true},
			{Name: "obsolete", SQLType: "text", Nullable: true},
		},
	}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"products": code},
		map[string]*schema.TableMetadata{"products": db},
	)
	require.Len(t, diff.TablesModified, 1)
	td := diff.TablesModified[0]

	require.Len(t, td.ColumnsAdded, 1)
	assert.Equal(t, "slug", td.ColumnsAdded[0].Name)
	require.Len(t, td.ColumnsDropped, 1)
	assert.Equal(t, "obsolete", td.ColumnsDropped[0].Name)

	require.Len(t, td.ColumnsModified, 2)
	assert.Equal(t, "title", td.ColumnsModified[0].ColumnName)
	assert.True(t, td.ColumnsModified[0].TypeChanged)
	assert.Equal(t, "inventory", td.ColumnsModified[1].ColumnName)
	assert.True(t, td.ColumnsModified[1].NullChanged)
	assert.True(t, td.ColumnsModified[1].DefaultChanged)
	assert.False(t, td.ColumnsModified[1].TypeChanged)
}

func TestDiffer_ColumnUniqueBecomesConstraint(t *testing.T) {
	code := &schema.TableMetadata{
		Name:    "discounts",
		Columns: []schema.ColumnMetadata{{Name: "code", SQLType: "varchar(20)", Unique: true}},
	}
	db := &schema.TableMetadata{
		Name:    "discounts",
		Columns: []schema.ColumnMetadata{{Name: "code", SQLType: "varchar(20)"}},
	}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"discounts": code},
		map[string]*schema.TableMetadata{"discounts": db},
	)
	require.Len(t, diff.TablesModified, 1)
	added := diff.TablesModified[0].ConstraintsAdded
	require.Len(t, added, 1)
	assert.Equal(t, "discounts_code_key", added[0].Name)
	assert.Equal(t, schema.UniqueConstraint, added[0].Type)

	// And the reverse direction drops it.
	diff = NewDiffer().Compare(
		map[string]*schema.TableMetadata{"discounts": db},
		map[string]*schema.TableMetadata{"discounts": code},
	)
	require.Len(t, diff.TablesModified, 1)
	assert.Len(t, diff.TablesModified[0].ConstraintsDropped, 1)
}

func TestDiffer_ForeignKeyRuleChange(t *testing.T) {
	fk := schema.ForeignKeyMetadata{
		Name:              "fk_comments_product_id_products",
		Columns:           []string{"product_id"},
		ReferencedTable:   "products",
		ReferencedColumns: []string{"id"},
	}
	cols := []schema.ColumnMetadata{{Name: "product_id", SQLType: "bigint"}}

	dbFK := fk
	dbFK.OnDelete = schema.NoAction
	codeFK := fk
	codeFK.OnDelete = schema.Cascade

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"comments": {Name: "comments", Columns: cols, ForeignKeys: []schema.ForeignKeyMetadata{codeFK}}},
		map[string]*schema.TableMetadata{"comments": {Name: "comments", Columns: cols, ForeignKeys: []schema.ForeignKeyMetadata{dbFK}}},
	)
	require.Len(t, diff.TablesModified, 1)
	td := diff.TablesModified[0]
	require.Len(t, td.ForeignKeysDropped, 1)
	require.Len(t, td.ForeignKeysAdded, 1)
	assert.Equal(t, schema.Cascade, td.ForeignKeysAdded[0].OnDelete)

	// An empty rule and NO ACTION are the same thing.
	dbFK.OnDelete = ""
	codeFK.OnDelete = schema.NoAction
	diff = NewDiffer().Compare(
		map[string]*schema.TableMetadata{"comments": {Name: "comments", Columns: cols, ForeignKeys: []schema.ForeignKeyMetadata{codeFK}}},
		map[string]*schema.TableMetadata{"comments": {Name: "comments", Columns: cols, ForeignKeys: []schema.ForeignKeyMetadata{dbFK}}},
	)
	assert.False(t, diff.HasChanges())
}

func TestDiffer_Indexes(t *testing.T) {
	cols := []schema.ColumnMetadata{{Name: "slug", SQLType: "varchar(50)"}, {Name: "title", SQLType: "varchar(255)"}}
	code := &schema.TableMetadata{Name: "products", Columns: cols, Indexes: []schema.IndexMetadata{
		{Name: "idx_products_slug", Columns: []string{"slug"}, Type: "btree"},
		{Name: "idx_products_title", Columns: []string{"title"}, Type: "hash"},
	}}
	db := &schema.TableMetadata{Name: "products", Columns: cols, Indexes: []schema.IndexMetadata{
		{Name: "idx_products_slug", Columns: []string{"slug"}},
		{Name: "idx_products_title", Columns: []string{"title"}},
		{Name: "idx_products_old", Columns: []string{"title"}},
	}}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"products": code},
		map[string]*schema.TableMetadata{"products": db},
	)
	require.Len(t, diff.TablesModified, 1)
	td := diff.TablesModified[0]

	require.Len(t, td.IndexesAdded, 1)
	assert.Equal(t, "idx_products_title", td.IndexesAdded[0].Name)
	require.Len(t, td.IndexesDropped, 2)
	assert.Equal(t, "idx_products_title", td.IndexesDropped[0].Name)
	assert.Equal(t, "idx_products_old", td.IndexesDropped[1].Name)
}

func TestDiffer_CheckConstraintsByName(t *testing.T) {
	cols := []schema.ColumnMetadata{{Name: "unit_price", SQLType: "numeric(6,2)"}}
	code := &schema.TableMetadata{Name: "products", Columns: cols, Constraints: []schema.ConstraintMetadata{
		{Name: "products_unit_price_check", Type: schema.CheckConstraint, Expression: "(unit_price >= 0)"},
	}}
	db := &schema.TableMetadata{Name: "products", Columns: cols, Constraints: []schema.ConstraintMetadata{
		{Name: "products_unit_price_check", Type: schema.CheckConstraint, Expression: "((unit_price >= (0)::numeric))"},
	}}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"products": code},
		map[string]*schema.TableMetadata{"products": db},
	)
	assert.False(t, diff.HasChanges())
}

func TestDiffer_PrimaryKeyChange(t *testing.T) {
	cols := []schema.ColumnMetadata{{Name: "id", SQLType: "bigint"}, {Name: "customer_id", SQLType: "bigint"}}
	code := &schema.TableMetadata{Name: "address", Columns: cols, PrimaryKey: &schema.PrimaryKeyMetadata{Name: "address_pkey", Columns: []string{"customer_id"}}}
	db := &schema.TableMetadata{Name: "address", Columns: cols, PrimaryKey: &schema.PrimaryKeyMetadata{Name: "address_pkey", Columns: []string{"id"}}}

	diff := NewDiffer().Compare(
		map[string]*schema.TableMetadata{"address": code},
		map[string]*schema.TableMetadata{"address": db},
	)
	require.Len(t, diff.TablesModified, 1)
	pk := diff.TablesModified[0].PrimaryKeyChanged
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.Old.Columns)
	assert.Equal(t, []string{"customer_id"}, pk.New.Columns)
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"character varying(255)":      "varchar(255)",
		"character varying":           "varchar",
		"timestamp with time zone":    "timestamptz",
		"timestamp without time zone": "timestamp",
		"int4":                        "integer",
		"int8":                        "bigint",
		"serial":                      "integer",
		"bigserial":                   "bigint",
		"bool":                        "boolean",
		"decimal(6,2)":                "numeric(6,2)",
		"NUMERIC(6, 2)":               "numeric(6,2)",
		"text":                        "text",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeType(in), in)
	}
}

func TestNormalizeDefault(t *testing.T) {
	tests := map[string]string{
		"'W'::character varying": "'w'",
		"(0)":                    "0",
		"((0))":                  "0",
		"CURRENT_TIMESTAMP":      "now()",
		"NOW()":                  "now()",
		"(now())":                "now()",
		"'P'::bpchar":            "'p'",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeDefault(in), in)
	}
}

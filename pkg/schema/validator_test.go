package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaultValue(t *testing.T) {
	tests := []struct {
		value   string
		wantErr string
	}{
		{"CURRENT_TIMESTAMP", ""},
		{"NOW()", ""},
		{"0", ""},
		{"-1.5", ""},
		{"true", ""},
		{"''", ""},
		{"'W'", ""},
		{"gen_random_uuid()", ""},
		{"CURRENT TIMESTAMP", "CURRENT_TIMESTAMP"},
		{"now ()", "NOW()"},
		{"now", "missing ()"},
		{"gen_random_uuid", "missing ()"},
		{"'unterminated", "unbalanced quote"},
		{"NOW(", "unbalanced parentheses"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := ValidateDefaultValue(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateTable(t *testing.T) {
	valid := func() *TableMetadata {
		return &TableMetadata{
			Name: "cart_items",
			Columns: []ColumnMetadata{
				{Name: "id"}, {Name: "cart_id"}, {Name: "product_id"},
			},
			PrimaryKey:  &PrimaryKeyMetadata{Name: "cart_items_pkey", Columns: []string{"id"}},
			ForeignKeys: []ForeignKeyMetadata{ref("cart_id", "carts", Cascade)},
			Indexes:     []IndexMetadata{{Name: "idx", Columns: []string{"product_id"}}},
			Constraints: []ConstraintMetadata{{Name: "pair", Type: UniqueConstraint, Columns: []string{"cart_id", "product_id"}}},
		}
	}

	assert.NoError(t, ValidateTable(valid()))

	tests := []struct {
		name   string
		mutate func(*TableMetadata)
		want   string
	}{
		{"no primary key", func(t *TableMetadata) { t.PrimaryKey = nil }, "no primary key"},
		{"duplicate column", func(t *TableMetadata) { t.Columns = append(t.Columns, ColumnMetadata{Name: "id"}) }, "duplicate column"},
		{"fk on unknown column", func(t *TableMetadata) { t.ForeignKeys[0].Columns = []string{"basket_id"} }, "unknown column basket_id"},
		{"fk arity", func(t *TableMetadata) { t.ForeignKeys[0].ReferencedColumns = []string{"a", "b"} }, "references 2"},
		{"index on unknown column", func(t *TableMetadata) { t.Indexes[0].Columns = []string{"sku"} }, "unknown column sku"},
		{"unique on unknown column", func(t *TableMetadata) { t.Constraints[0].Columns = []string{"cart_id", "qty"} }, "unknown column qty"},
		{"empty check", func(t *TableMetadata) {
			t.Constraints = append(t.Constraints, ConstraintMetadata{Name: "c", Type: CheckConstraint})
		}, "no expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := valid()
			tt.mutate(table)
			assert.ErrorContains(t, ValidateTable(table), tt.want)
		})
	}
}

package builder

import (
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Col returns the column name behind a Go field of T, so conditions can
// name fields instead of repeating tag values:
//
//	builder.Eq(builder.Col[models.Product]("Slug"), slug)
//
// Unknown fields are returned unchanged.
func Col[T any](goFieldName string) string {
	var zero T
	table, err := registry.GetOrRegister(zero)
	if err != nil {
		return goFieldName
	}
	column := table.GetColumnByField(goFieldName)
	if column == nil {
		return goFieldName
	}
	return column.Name
}

// quoteColumn quotes a column reference. table.column references are
// quoted per part; expressions such as COUNT(*) pass through.
func quoteColumn(col string) string {
	for _, r := range col {
		switch r {
		case '(', ' ', '*', '"':
			return col
		}
	}
	for i := 0; i < len(col); i++ {
		if col[i] == '.' {
			return schema.QuoteIdent(col[:i]) + "." + quoteColumn(col[i+1:])
		}
	}
	return schema.QuoteIdent(col)
}

func quoteColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteColumn(c)
	}
	return out
}

// qualifiedColumns lists every column of table as table.column.
func qualifiedColumns(table *schema.TableMetadata) []string {
	name := schema.QuoteIdent(table.Name)
	out := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		out[i] = name + "." + schema.QuoteIdent(c.Name)
	}
	return out
}

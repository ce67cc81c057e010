package migration

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/marshallshelly/storefront/pkg/schema"
)

// Differ compares schemas and generates diffs.
type Differ struct{}

// NewDiffer creates a new schema differ.
func NewDiffer() *Differ {
	return &Differ{}
}

// Compare returns what must change for dbSchema (introspected) to match
// codeSchema (parsed from models). Results are ordered by name so the
// generated SQL is stable.
func (d *Differ) Compare(codeSchema, dbSchema map[string]*schema.TableMetadata) *SchemaDiff {
	diff := &SchemaDiff{}

	for _, name := range sortedNames(codeSchema) {
		codeTable := codeSchema[name]
		dbTable, exists := dbSchema[name]
		if !exists {
			diff.TablesAdded = append(diff.TablesAdded, codeTable)
			continue
		}
		if tableDiff := d.compareTable(codeTable, dbTable); tableDiff.HasChanges() {
			diff.TablesModified = append(diff.TablesModified, tableDiff)
		}
	}

	for _, name := range sortedNames(dbSchema) {
		if _, exists := codeSchema[name]; !exists {
			diff.TablesDropped = append(diff.TablesDropped, dbSchema[name])
		}
	}

	return diff
}

func sortedNames(tables map[string]*schema.TableMetadata) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Differ) compareTable(codeTable, dbTable *schema.TableMetadata) TableDiff {
	diff := TableDiff{TableName: codeTable.Name}

	d.compareColumns(codeTable, dbTable, &diff)
	d.comparePrimaryKey(codeTable, dbTable, &diff)
	d.compareIndexes(codeTable, dbTable, &diff)
	d.compareForeignKeys(codeTable, dbTable, &diff)
	d.compareConstraints(codeTable, dbTable, &diff)

	return diff
}

func (d *Differ) compareColumns(codeTable, dbTable *schema.TableMetadata, diff *TableDiff) {
	for _, codeCol := range codeTable.Columns {
		dbCol := dbTable.GetColumnByName(codeCol.Name)
		if dbCol == nil {
			diff.ColumnsAdded = append(diff.ColumnsAdded, codeCol)
			continue
		}

		colDiff := d.compareColumn(codeCol, *dbCol)
		if colDiff.hasChanges() {
			diff.ColumnsModified = append(diff.ColumnsModified, colDiff)
		}

		// Single-column UNIQUE lives on the column; reconcile it as the
		// constraint PostgreSQL names <table>_<column>_key.
		if codeCol.Unique != dbCol.Unique {
			c := schema.ConstraintMetadata{
				Name:    codeTable.Name + "_" + codeCol.Name + "_key",
				Type:    schema.UniqueConstraint,
				Columns: []string{codeCol.Name},
			}
			if codeCol.Unique {
				diff.ConstraintsAdded = append(diff.ConstraintsAdded, c)
			} else {
				diff.ConstraintsDropped = append(diff.ConstraintsDropped, c)
			}
		}
	}

	for _, dbCol := range dbTable.Columns {
		if codeTable.GetColumnByName(dbCol.Name) == nil {
			diff.ColumnsDropped = append(diff.ColumnsDropped, dbCol)
		}
	}
}

func (d *Differ) compareColumn(codeCol, dbCol schema.ColumnMetadata) ColumnDiff {
	diff := ColumnDiff{
		ColumnName: codeCol.Name,
		OldColumn:  dbCol,
		NewColumn:  codeCol,
	}

	diff.TypeChanged = !d.isSameType(codeCol.SQLType, dbCol.SQLType)

	// Identity columns are NOT NULL and have no default of their own.
	if codeCol.Identity == nil && dbCol.Identity == nil {
		diff.NullChanged = codeCol.Nullable != dbCol.Nullable
		diff.DefaultChanged = !d.isSameDefault(codeCol.Default, dbCol.Default)
	}

	return diff
}

func (c *ColumnDiff) hasChanges() bool {
	return c.TypeChanged || c.NullChanged || c.DefaultChanged
}

func (d *Differ) comparePrimaryKey(codeTable, dbTable *schema.TableMetadata, diff *TableDiff) {
	codePK, dbPK := codeTable.PrimaryKey, dbTable.PrimaryKey
	if codePK == nil && dbPK == nil {
		return
	}
	if codePK == nil || dbPK == nil || !slices.Equal(codePK.Columns, dbPK.Columns) {
		diff.PrimaryKeyChanged = &PrimaryKeyChange{Old: dbPK, New: codePK}
	}
}

// compareIndexes matches indexes by name; a changed definition is a drop
// plus an add.
func (d *Differ) compareIndexes(codeTable, dbTable *schema.TableMetadata, diff *TableDiff) {
	dbIndexes := make(map[string]schema.IndexMetadata, len(dbTable.Indexes))
	for _, idx := range dbTable.Indexes {
		dbIndexes[idx.Name] = idx
	}
	codeIndexes := make(map[string]bool, len(codeTable.Indexes))

	for _, idx := range codeTable.Indexes {
		codeIndexes[idx.Name] = true
		dbIdx, exists := dbIndexes[idx.Name]
		if exists && sameIndex(idx, dbIdx) {
			continue
		}
		if exists {
			diff.IndexesDropped = append(diff.IndexesDropped, dbIdx)
		}
		diff.IndexesAdded = append(diff.IndexesAdded, idx)
	}

	for _, idx := range dbTable.Indexes {
		if !codeIndexes[idx.Name] {
			diff.IndexesDropped = append(diff.IndexesDropped, idx)
		}
	}
}

func sameIndex(a, b schema.IndexMetadata) bool {
	typeOf := func(t string) string {
		if t == "" {
			return "btree"
		}
		return strings.ToLower(t)
	}
	return a.Unique == b.Unique && typeOf(a.Type) == typeOf(b.Type) && slices.Equal(a.Columns, b.Columns)
}

// compareForeignKeys matches foreign keys by name. A changed target or
// ON DELETE/ON UPDATE rule is a drop plus an add.
func (d *Differ) compareForeignKeys(codeTable, dbTable *schema.TableMetadata, diff *TableDiff) {
	dbFKs := make(map[string]schema.ForeignKeyMetadata, len(dbTable.ForeignKeys))
	for _, fk := range dbTable.ForeignKeys {
		dbFKs[fk.Name] = fk
	}
	codeFKs := make(map[string]bool, len(codeTable.ForeignKeys))

	for _, fk := range codeTable.ForeignKeys {
		codeFKs[fk.Name] = true
		dbFK, exists := dbFKs[fk.Name]
		if exists && sameForeignKey(fk, dbFK) {
			continue
		}
		if exists {
			diff.ForeignKeysDropped = append(diff.ForeignKeysDropped, dbFK)
		}
		diff.ForeignKeysAdded = append(diff.ForeignKeysAdded, fk)
	}

	for _, fk := range dbTable.ForeignKeys {
		if !codeFKs[fk.Name] {
			diff.ForeignKeysDropped = append(diff.ForeignKeysDropped, fk)
		}
	}
}

func sameForeignKey(a, b schema.ForeignKeyMetadata) bool {
	action := func(r schema.ReferenceAction) schema.ReferenceAction {
		if r == "" {
			return schema.NoAction
		}
		return r
	}
	return a.ReferencedTable == b.ReferencedTable &&
		slices.Equal(a.Columns, b.Columns) &&
		slices.Equal(a.ReferencedColumns, b.ReferencedColumns) &&
		action(a.OnDelete) == action(b.OnDelete) &&
		action(a.OnUpdate) == action(b.OnUpdate)
}

// compareConstraints keys UNIQUE constraints by their columns and CHECK
// constraints by name. PostgreSQL rewrites CHECK expressions, so their
// text is not compared.
func (d *Differ) compareConstraints(codeTable, dbTable *schema.TableMetadata, diff *TableDiff) {
	dbKeys := make(map[string]bool, len(dbTable.Constraints))
	for _, c := range dbTable.Constraints {
		dbKeys[constraintKey(c)] = true
	}
	codeKeys := make(map[string]bool, len(codeTable.Constraints))
	for _, c := range codeTable.Constraints {
		key := constraintKey(c)
		codeKeys[key] = true
		if !dbKeys[key] {
			diff.ConstraintsAdded = append(diff.ConstraintsAdded, c)
		}
	}
	for _, c := range dbTable.Constraints {
		if !codeKeys[constraintKey(c)] {
			diff.ConstraintsDropped = append(diff.ConstraintsDropped, c)
		}
	}
}

func constraintKey(c schema.ConstraintMetadata) string {
	if c.Type == schema.UniqueConstraint {
		return "unique:" + strings.Join(c.Columns, ",")
	}
	return string(c.Type) + ":" + c.Name
}

func (d *Differ) isSameType(a, b string) bool {
	return normalizeType(a) == normalizeType(b)
}

var varyingRe = regexp.MustCompile(`^character varying(\(\d+\))?$`)

// normalizeType maps PostgreSQL spellings of a type onto the short form
// used in struct tags.
func normalizeType(sqlType string) string {
	t := strings.Join(strings.Fields(strings.ToLower(sqlType)), " ")
	t = strings.ReplaceAll(t, ", ", ",")

	switch t {
	case "int", "int4":
		return "integer"
	case "int2":
		return "smallint"
	case "int8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	case "timestamp without time zone":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "serial", "serial4":
		return "integer"
	case "bigserial", "serial8":
		return "bigint"
	case "smallserial", "serial2":
		return "smallint"
	}

	if m := varyingRe.FindStringSubmatch(t); m != nil {
		return "varchar" + m[1]
	}
	if strings.HasPrefix(t, "decimal") {
		return "numeric" + strings.TrimPrefix(t, "decimal")
	}
	return t
}

func (d *Differ) isSameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return normalizeDefault(*a) == normalizeDefault(*b)
}

// normalizeDefault strips casts and wrapping parentheses PostgreSQL adds
// when it stores a default expression.
func normalizeDefault(expr string) string {
	n := strings.ToLower(strings.TrimSpace(expr))
	for strings.HasPrefix(n, "(") && strings.HasSuffix(n, ")") && balanced(n[1:len(n)-1]) {
		n = strings.TrimSpace(n[1 : len(n)-1])
	}
	if idx := strings.Index(n, "::"); idx != -1 {
		n = n[:idx]
	}
	switch n {
	case "current_timestamp", "now()", "transaction_timestamp()":
		return "now()"
	}
	return strings.TrimSpace(n)
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

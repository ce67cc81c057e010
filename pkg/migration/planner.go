package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/storefront/pkg/schema"
)

var quoteIdent = schema.QuoteIdent

// PlannerOptions configures migration generation.
type PlannerOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE and CREATE INDEX.
	IfNotExists bool
}

// Planner turns schema diffs into DDL.
type Planner struct {
	options PlannerOptions
}

// NewPlanner creates a planner that emits IF NOT EXISTS.
func NewPlanner() *Planner {
	return &Planner{options: PlannerOptions{IfNotExists: true}}
}

// NewPlannerWithOptions creates a planner with custom options.
func NewPlannerWithOptions(opts PlannerOptions) *Planner {
	return &Planner{options: opts}
}

// GenerateMigration generates up and down SQL from a schema diff.
//
// New tables are created in dependency order; foreign keys that close a
// reference cycle are added with ALTER TABLE once every table exists. The
// down script undoes the up script in reverse.
func (p *Planner) GenerateMigration(diff *SchemaDiff) (upSQL, downSQL string, err error) {
	var up, down []string

	created, createdDeferred, err := schema.SortTables(diff.TablesAdded)
	if err != nil {
		return "", "", fmt.Errorf("failed to order new tables: %w", err)
	}
	for _, t := range created {
		up = append(up, p.generateCreateTable(t, createdDeferred))
	}
	for _, d := range createdDeferred {
		up = append(up, p.generateAddForeignKey(d.Table, d.ForeignKey))
	}

	var alterDown []string
	for _, tableDiff := range diff.TablesModified {
		u, d := p.generateAlterTable(tableDiff)
		up = append(up, u...)
		alterDown = append(alterDown, d...)
	}

	dropped, droppedDeferred, err := schema.SortTables(diff.TablesDropped)
	if err != nil {
		return "", "", fmt.Errorf("failed to order dropped tables: %w", err)
	}
	for _, d := range droppedDeferred {
		up = append(up, p.generateDropConstraint(d.Table, d.ForeignKey.Name))
	}
	for i := len(dropped) - 1; i >= 0; i-- {
		up = append(up, p.generateDropTable(dropped[i].Name))
	}

	// Down: recreate dropped tables, revert alterations, drop new tables.
	for _, t := range dropped {
		down = append(down, p.generateCreateTable(t, droppedDeferred))
	}
	for _, d := range droppedDeferred {
		down = append(down, p.generateAddForeignKey(d.Table, d.ForeignKey))
	}
	for i := len(alterDown) - 1; i >= 0; i-- {
		down = append(down, alterDown[i])
	}
	for i := len(createdDeferred) - 1; i >= 0; i-- {
		d := createdDeferred[i]
		down = append(down, p.generateDropConstraint(d.Table, d.ForeignKey.Name))
	}
	for i := len(created) - 1; i >= 0; i-- {
		down = append(down, p.generateDropTable(created[i].Name))
	}

	return joinStatements(up), joinStatements(down), nil
}

// CreateSchemaSQL returns the DDL that creates tables from scratch.
func (p *Planner) CreateSchemaSQL(tables []*schema.TableMetadata) (string, error) {
	up, _, err := p.GenerateMigration(&SchemaDiff{TablesAdded: tables})
	return up, err
}

func joinStatements(statements []string) string {
	if len(statements) == 0 {
		return ""
	}
	return strings.Join(statements, "\n\n") + "\n"
}

// generateCreateTable generates a CREATE TABLE statement followed by its
// indexes. Foreign keys listed in deferred are left out.
func (p *Planner) generateCreateTable(table *schema.TableMetadata, deferred []schema.DeferredForeignKey) string {
	var parts []string

	var singlePK string
	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) == 1 {
		singlePK = table.PrimaryKey.Columns[0]
	}

	for _, col := range table.Columns {
		def := p.generateColumnDefinition(col)
		if col.Name == singlePK {
			def += " PRIMARY KEY"
		}
		parts = append(parts, "    "+def)
	}

	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 1 {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			quoteIdent(table.PrimaryKey.Name), schema.QuoteIdents(table.PrimaryKey.Columns)))
	}

	for _, fk := range table.ForeignKeys {
		if schema.IsDeferred(deferred, table.Name, fk.Name) {
			continue
		}
		parts = append(parts, "    "+p.generateForeignKeyDefinition(fk))
	}

	for _, c := range table.Constraints {
		switch c.Type {
		case schema.CheckConstraint:
			parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK %s", quoteIdent(c.Name), c.Expression))
		case schema.UniqueConstraint:
			parts = append(parts, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)", quoteIdent(c.Name), schema.QuoteIdents(c.Columns)))
		}
	}

	create := "CREATE TABLE"
	if p.options.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS"
	}
	sql := fmt.Sprintf("%s %s (\n%s\n);", create, quoteIdent(table.Name), strings.Join(parts, ",\n"))

	for _, idx := range table.Indexes {
		sql += "\n" + p.generateCreateIndex(table.Name, idx)
	}
	return sql
}

func (p *Planner) generateColumnDefinition(col schema.ColumnMetadata) string {
	parts := []string{quoteIdent(col.Name), col.SQLType}

	if col.Identity != nil {
		// Identity columns are implicitly NOT NULL.
		parts = append(parts, fmt.Sprintf("GENERATED %s AS IDENTITY", col.Identity.Generation))
	} else {
		if !col.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if col.Default != nil {
			parts = append(parts, "DEFAULT", *col.Default)
		}
	}

	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

func (p *Planner) generateForeignKeyDefinition(fk schema.ForeignKeyMetadata) string {
	parts := []string{
		fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s)", quoteIdent(fk.Name), schema.QuoteIdents(fk.Columns)),
		fmt.Sprintf("REFERENCES %s (%s)", quoteIdent(fk.ReferencedTable), schema.QuoteIdents(fk.ReferencedColumns)),
	}
	if fk.OnDelete != schema.NoAction && fk.OnDelete != "" {
		parts = append(parts, "ON DELETE "+string(fk.OnDelete))
	}
	if fk.OnUpdate != schema.NoAction && fk.OnUpdate != "" {
		parts = append(parts, "ON UPDATE "+string(fk.OnUpdate))
	}
	return strings.Join(parts, " ")
}

func (p *Planner) generateAddForeignKey(table string, fk schema.ForeignKeyMetadata) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", quoteIdent(table), p.generateForeignKeyDefinition(fk))
}

func (p *Planner) generateDropConstraint(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;", quoteIdent(table), quoteIdent(name))
}

func (p *Planner) generateCreateIndex(tableName string, idx schema.IndexMetadata) string {
	parts := []string{"CREATE INDEX"}
	if idx.Unique {
		parts[0] = "CREATE UNIQUE INDEX"
	}
	if p.options.IfNotExists {
		parts = append(parts, "IF NOT EXISTS")
	}
	parts = append(parts, quoteIdent(idx.Name), "ON", quoteIdent(tableName))
	if idx.Type != "" && idx.Type != "btree" {
		parts = append(parts, "USING", idx.Type)
	}
	parts = append(parts, "("+schema.QuoteIdents(idx.Columns)+")")
	return strings.Join(parts, " ") + ";"
}

func (p *Planner) generateDropIndex(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s;", quoteIdent(name))
}

func (p *Planner) generateDropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", quoteIdent(tableName))
}

// generateAlterTable generates ALTER TABLE statements for table
// modifications. downSQL is in execution order for the reverse step.
func (p *Planner) generateAlterTable(diff TableDiff) (upSQL, downSQL []string) {
	table := quoteIdent(diff.TableName)

	// Constraints and keys that depend on dropped columns go first.
	for _, fk := range diff.ForeignKeysDropped {
		upSQL = append(upSQL, p.generateDropConstraint(diff.TableName, fk.Name))
		downSQL = append(downSQL, p.generateAddForeignKey(diff.TableName, fk))
	}
	for _, c := range diff.ConstraintsDropped {
		upSQL = append(upSQL, p.generateDropConstraint(diff.TableName, c.Name))
		downSQL = append(downSQL, p.generateAddConstraint(diff.TableName, c))
	}
	for _, idx := range diff.IndexesDropped {
		upSQL = append(upSQL, p.generateDropIndex(idx.Name))
		downSQL = append(downSQL, p.generateCreateIndex(diff.TableName, idx))
	}

	for _, col := range diff.ColumnsAdded {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, p.generateColumnDefinition(col)))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", table, quoteIdent(col.Name)))
	}
	for _, col := range diff.ColumnsDropped {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", table, quoteIdent(col.Name)))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, p.generateColumnDefinition(col)))
	}
	for _, colDiff := range diff.ColumnsModified {
		u, d := p.generateColumnModification(diff.TableName, colDiff)
		upSQL = append(upSQL, u...)
		downSQL = appendReversed(downSQL, d)
	}

	if diff.PrimaryKeyChanged != nil {
		u, d := p.generatePrimaryKeyChange(diff.TableName, diff.PrimaryKeyChanged)
		upSQL = append(upSQL, u...)
		downSQL = appendReversed(downSQL, d)
	}

	for _, idx := range diff.IndexesAdded {
		upSQL = append(upSQL, p.generateCreateIndex(diff.TableName, idx))
		downSQL = append(downSQL, p.generateDropIndex(idx.Name))
	}
	for _, c := range diff.ConstraintsAdded {
		upSQL = append(upSQL, p.generateAddConstraint(diff.TableName, c))
		downSQL = append(downSQL, p.generateDropConstraint(diff.TableName, c.Name))
	}
	for _, fk := range diff.ForeignKeysAdded {
		upSQL = append(upSQL, p.generateAddForeignKey(diff.TableName, fk))
		downSQL = append(downSQL, p.generateDropConstraint(diff.TableName, fk.Name))
	}

	slices.Reverse(downSQL)
	return upSQL, downSQL
}

// appendReversed appends steps backwards, so that reversing the whole
// down list restores their order.
func appendReversed(dst, steps []string) []string {
	for i := len(steps) - 1; i >= 0; i-- {
		dst = append(dst, steps[i])
	}
	return dst
}

func (p *Planner) generateColumnModification(tableName string, colDiff ColumnDiff) (upSQL, downSQL []string) {
	table := quoteIdent(tableName)
	col := quoteIdent(colDiff.ColumnName)

	if colDiff.TypeChanged {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s%s;",
			table, col, colDiff.NewColumn.SQLType, usingClause(col, colDiff.OldColumn.SQLType, colDiff.NewColumn.SQLType)))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s%s;",
			table, col, colDiff.OldColumn.SQLType, usingClause(col, colDiff.NewColumn.SQLType, colDiff.OldColumn.SQLType)))
	}

	if colDiff.NullChanged {
		set, drop := "SET NOT NULL", "DROP NOT NULL"
		if colDiff.NewColumn.Nullable {
			set, drop = drop, set
		}
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", table, col, set))
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", table, col, drop))
	}

	if colDiff.DefaultChanged {
		upSQL = append(upSQL, alterDefault(table, col, colDiff.NewColumn.Default))
		downSQL = append(downSQL, alterDefault(table, col, colDiff.OldColumn.Default))
	}

	return upSQL, downSQL
}

func alterDefault(table, col string, def *string) string {
	if def == nil {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, col)
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, col, *def)
}

// usingClause returns the USING expression for conversions PostgreSQL will
// not cast implicitly, or "".
func usingClause(col, fromType, toType string) string {
	from := strings.ToLower(strings.TrimSpace(fromType))
	to := strings.ToLower(strings.TrimSpace(toType))
	if from == to {
		return ""
	}

	textual := from == "text" || strings.HasPrefix(from, "varchar") || strings.HasPrefix(from, "character varying")
	switch {
	case textual && (to == "integer" || to == "bigint" || to == "smallint" || strings.HasPrefix(to, "numeric")):
		return fmt.Sprintf(" USING %s::%s", col, to)
	case textual && (to == "date" || to == "timestamptz"):
		return fmt.Sprintf(" USING %s::%s", col, to)
	}
	return ""
}

func (p *Planner) generatePrimaryKeyChange(tableName string, pk *PrimaryKeyChange) (upSQL, downSQL []string) {
	if pk.Old != nil {
		upSQL = append(upSQL, p.generateDropConstraint(tableName, pk.Old.Name))
	}
	if pk.New != nil {
		upSQL = append(upSQL, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s);",
			quoteIdent(tableName), quoteIdent(pk.New.Name), schema.QuoteIdents(pk.New.Columns)))
		downSQL = append(downSQL, p.generateDropConstraint(tableName, pk.New.Name))
	}
	if pk.Old != nil {
		downSQL = append(downSQL, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s);",
			quoteIdent(tableName), quoteIdent(pk.Old.Name), schema.QuoteIdents(pk.Old.Columns)))
	}
	return upSQL, downSQL
}

func (p *Planner) generateAddConstraint(tableName string, c schema.ConstraintMetadata) string {
	switch c.Type {
	case schema.UniqueConstraint:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);",
			quoteIdent(tableName), quoteIdent(c.Name), schema.QuoteIdents(c.Columns))
	case schema.CheckConstraint:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK %s;",
			quoteIdent(tableName), quoteIdent(c.Name), c.Expression)
	default:
		return fmt.Sprintf("-- unknown constraint type %s on %s", c.Type, c.Name)
	}
}

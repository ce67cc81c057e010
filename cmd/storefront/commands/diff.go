package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/marshallshelly/storefront/cmd/storefront/output"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/spf13/cobra"
)

var (
	// Diff flags
	outputFile string
)

// diffCmd shows schema differences
var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show schema differences",
	Long: `Compare the store models with the database schema and show differences.

This command shows what a generated migration would contain
before any migration files are written.

Examples:
  storefront diff                          # Show schema differences
  storefront diff --json                   # Output in JSON format
  storefront diff --output migration.sql   # Save SQL to file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiff(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output SQL to file")
}

// schemaDiff compares the registered models with the live database.
func schemaDiff(ctx context.Context) (*migration.SchemaDiff, error) {
	codeSchema := registry.AllTables()
	if len(codeSchema) == 0 {
		return nil, fmt.Errorf("no models registered")
	}

	db, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	dbSchema, err := migration.NewIntrospector(db.Pool()).IntrospectSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return migration.NewDiffer().Compare(codeSchema, dbSchema), nil
}

func runDiff(ctx context.Context) error {
	diff, err := schemaDiff(ctx)
	if err != nil {
		return err
	}
	if !diff.HasChanges() {
		output.Success("No schema changes detected. Database is in sync with models.")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}

	upSQL, downSQL, err := migration.NewPlanner().GenerateMigration(diff)
	if err != nil {
		return fmt.Errorf("failed to plan migration: %w", err)
	}

	output.Section("Schema Differences")

	if len(diff.TablesAdded) > 0 {
		output.Success("Tables to add (%d):", len(diff.TablesAdded))
		for _, table := range diff.TablesAdded {
			fmt.Printf("  + %s (%d columns)\n", table.Name, len(table.Columns))
		}
		fmt.Println()
	}

	if len(diff.TablesDropped) > 0 {
		output.Warning("Tables to drop (%d):", len(diff.TablesDropped))
		for _, table := range diff.TablesDropped {
			fmt.Printf("  - %s\n", table.Name)
		}
		fmt.Println()
	}

	if len(diff.TablesModified) > 0 {
		output.Info("Tables to modify (%d):", len(diff.TablesModified))
		for _, td := range diff.TablesModified {
			printTableDiff(td)
		}
		fmt.Println()
	}

	output.Section("Migration SQL (UP)")
	fmt.Println(upSQL)

	if verbose {
		output.Section("Migration SQL (DOWN)")
		fmt.Println(downSQL)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(upSQL), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Println()
		output.Success("SQL saved to: %s", outputFile)
	}
	return nil
}

func printTableDiff(td migration.TableDiff) {
	fmt.Printf("  ~ %s\n", td.TableName)

	for _, col := range td.ColumnsAdded {
		fmt.Printf("      + column: %s %s\n", col.Name, col.SQLType)
	}
	for _, col := range td.ColumnsDropped {
		fmt.Printf("      - column: %s\n", col.Name)
	}
	for _, cd := range td.ColumnsModified {
		fmt.Printf("      ~ column: %s (%s)\n", cd.ColumnName, strings.Join(columnChanges(cd), ", "))
	}
	for _, idx := range td.IndexesAdded {
		fmt.Printf("      + index: %s\n", idx.Name)
	}
	for _, idx := range td.IndexesDropped {
		fmt.Printf("      - index: %s\n", idx.Name)
	}
	for _, fk := range td.ForeignKeysAdded {
		fmt.Printf("      + foreign key: %s (on delete %s)\n", fk.Name, onDelete(fk))
	}
	for _, fk := range td.ForeignKeysDropped {
		fmt.Printf("      - foreign key: %s\n", fk.Name)
	}
	for _, c := range td.ConstraintsAdded {
		fmt.Printf("      + %s: %s\n", strings.ToLower(string(c.Type)), c.Name)
	}
	for _, c := range td.ConstraintsDropped {
		fmt.Printf("      - %s: %s\n", strings.ToLower(string(c.Type)), c.Name)
	}
	if td.PrimaryKeyChanged != nil {
		fmt.Printf("      ~ primary key changed\n")
	}
}

func columnChanges(cd migration.ColumnDiff) []string {
	var changes []string
	if cd.TypeChanged {
		changes = append(changes, fmt.Sprintf("type: %s -> %s", cd.OldColumn.SQLType, cd.NewColumn.SQLType))
	}
	if cd.NullChanged {
		changes = append(changes, fmt.Sprintf("%s -> %s", nullability(cd.OldColumn), nullability(cd.NewColumn)))
	}
	if cd.DefaultChanged {
		changes = append(changes, fmt.Sprintf("default: %s -> %s", defaultOf(cd.OldColumn), defaultOf(cd.NewColumn)))
	}
	return changes
}

func nullability(c schema.ColumnMetadata) string {
	if c.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func defaultOf(c schema.ColumnMetadata) string {
	if c.Default == nil {
		return "no default"
	}
	return *c.Default
}

func onDelete(fk schema.ForeignKeyMetadata) string {
	if fk.OnDelete == "" {
		return strings.ToLower(string(schema.NoAction))
	}
	return strings.ToLower(string(fk.OnDelete))
}

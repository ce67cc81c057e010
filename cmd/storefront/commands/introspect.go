package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/marshallshelly/storefront/cmd/storefront/output"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/spf13/cobra"
)

var (
	// Introspect flags
	tableName string
)

// introspectCmd introspects database schema
var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Introspect database schema",
	Long: `Introspect the database schema and display table structures.

This command queries the PostgreSQL catalogs to extract table definitions,
including columns, indexes, foreign keys, and constraints.

Examples:
  storefront introspect                    # Show all tables
  storefront introspect --table products   # Show specific table
  storefront introspect --json             # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		introspector := migration.NewIntrospector(db.Pool())

		if tableName != "" {
			table, err := introspector.IntrospectTable(ctx, tableName)
			if err != nil {
				return fmt.Errorf("failed to introspect table %s: %w", tableName, err)
			}
			if jsonOutput {
				return writeJSON(os.Stdout, table)
			}
			printTable(os.Stdout, table)
			return nil
		}

		tables, err := introspector.IntrospectSchema(ctx)
		if err != nil {
			return fmt.Errorf("failed to introspect schema: %w", err)
		}
		if len(tables) == 0 {
			output.Warning("No tables found in database")
			return nil
		}
		if jsonOutput {
			return writeJSON(os.Stdout, tables)
		}

		output.Section(fmt.Sprintf("Database Schema (%d tables)", len(tables)))
		for _, name := range slices.Sorted(maps.Keys(tables)) {
			printTableSummary(os.Stdout, tables[name])
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(introspectCmd)

	introspectCmd.Flags().StringVarP(&tableName, "table", "t", "", "Specific table to introspect")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, table *schema.TableMetadata) {
	fmt.Fprintf(w, "Table: %s\n", table.Name)
	fmt.Fprintln(w, strings.Repeat("=", len(table.Name)+7))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Columns:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tNULLABLE\tDEFAULT")
	_, _ = fmt.Fprintln(tw, "----\t----\t--------\t-------")
	for _, col := range table.Columns {
		nullable := "NO"
		if col.Nullable {
			nullable = "YES"
		}
		def := "NULL"
		switch {
		case col.Identity != nil:
			def = fmt.Sprintf("GENERATED %s AS IDENTITY", col.Identity.Generation)
		case col.Default != nil:
			def = *col.Default
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", col.Name, col.SQLType, nullable, def)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	if table.PrimaryKey != nil {
		fmt.Fprintf(w, "Primary Key: %s (%s)\n\n", table.PrimaryKey.Name, strings.Join(table.PrimaryKey.Columns, ", "))
	}

	if len(table.ForeignKeys) > 0 {
		fmt.Fprintln(w, "Foreign Keys:")
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(w, "  %s: (%s) -> %s(%s)\n",
				fk.Name,
				strings.Join(fk.Columns, ", "),
				fk.ReferencedTable,
				strings.Join(fk.ReferencedColumns, ", "),
			)
			if fk.OnDelete != "" {
				fmt.Fprintf(w, "    ON DELETE: %s\n", fk.OnDelete)
			}
		}
		fmt.Fprintln(w)
	}

	if len(table.Indexes) > 0 {
		fmt.Fprintln(w, "Indexes:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.Unique {
				unique = "UNIQUE "
			}
			fmt.Fprintf(w, "  %s%s (%s)\n", unique, idx.Name, strings.Join(idx.Columns, ", "))
		}
		fmt.Fprintln(w)
	}

	if len(table.Constraints) > 0 {
		fmt.Fprintln(w, "Constraints:")
		for _, c := range table.Constraints {
			switch c.Type {
			case schema.CheckConstraint:
				fmt.Fprintf(w, "  %s: CHECK %s\n", c.Name, c.Expression)
			default:
				fmt.Fprintf(w, "  %s: %s (%s)\n", c.Name, c.Type, strings.Join(c.Columns, ", "))
			}
		}
	}
}

func printTableSummary(w io.Writer, table *schema.TableMetadata) {
	fmt.Fprintf(w, "Table: %s\n", table.Name)
	fmt.Fprintf(w, "  Columns: %d\n", len(table.Columns))
	if table.PrimaryKey != nil {
		fmt.Fprintf(w, "  Primary Key: %s\n", strings.Join(table.PrimaryKey.Columns, ", "))
	}
	if len(table.ForeignKeys) > 0 {
		fmt.Fprintf(w, "  Foreign Keys: %d\n", len(table.ForeignKeys))
	}
	if len(table.Indexes) > 0 {
		fmt.Fprintf(w, "  Indexes: %d\n", len(table.Indexes))
	}
	if len(table.Constraints) > 0 {
		fmt.Fprintf(w, "  Constraints: %d\n", len(table.Constraints))
	}
}

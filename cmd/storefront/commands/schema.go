package commands

import (
	"fmt"
	"io"

	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaFormat string

// schemaCmd prints the model schema without touching a database.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema defined by the models",
	Long: `Print the DDL or Markdown documentation for the registered models.
No database connection is needed.

Examples:
  storefront schema                      # CREATE TABLE statements
  storefront schema --format markdown    # Schema documentation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeSchema(cmd.OutOrStdout(), schemaFormat)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "sql", "Output format: sql or markdown")
}

func writeSchema(w io.Writer, format string) error {
	tables, _, err := registry.Ordered()
	if err != nil {
		return fmt.Errorf("failed to order tables: %w", err)
	}

	switch format {
	case "sql":
		ddl, err := migration.NewPlanner().CreateSchemaSQL(tables)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, ddl)
		return err
	case "markdown", "md":
		return schema.WriteMarkdown(w, tables)
	default:
		return fmt.Errorf("unknown format %q (want sql or markdown)", format)
	}
}

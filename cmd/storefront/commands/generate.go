package commands

import (
	"fmt"

	"github.com/marshallshelly/storefront/cmd/storefront/output"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/spf13/cobra"
)

var (
	// Generate flags
	migrationName string
	empty         bool
)

// generateCmd generates migration files
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate migration files",
	Long: `Generate migration files by comparing the store models with the database schema.

The command introspects the database, compares it with the registered models,
and writes timestamped up/down SQL migration files.

Examples:
  storefront generate --name create_catalog   # Generate from schema diff
  storefront generate --name backfill --empty # Generate empty migration for manual editing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		generator := migration.NewGenerator(migrationsDir)
		if empty {
			file, err := generator.GenerateEmpty(migrationName)
			if err != nil {
				return fmt.Errorf("failed to generate empty migration: %w", err)
			}
			printCreated("Created empty migration", file)
			fmt.Println()
			output.Info("Edit the SQL files manually to add your migration logic.")
			return nil
		}

		diff, err := schemaDiff(cmd.Context())
		if err != nil {
			return err
		}
		if !diff.HasChanges() {
			output.Info("No schema changes detected. Database is in sync with models.")
			return nil
		}

		output.Section("Detected Schema Changes")
		printDiffSummary(diff)

		file, err := generator.Generate(migrationName, diff)
		if err != nil {
			return fmt.Errorf("failed to generate migration: %w", err)
		}

		fmt.Println()
		printCreated("Created migration", file)
		fmt.Println()
		output.Info("Review the generated SQL files before applying the migration.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&migrationName, "name", "n", "", "Migration name (required)")
	generateCmd.Flags().BoolVar(&empty, "empty", false, "Generate empty migration for manual editing")
	_ = generateCmd.MarkFlagRequired("name")
}

func printCreated(title string, file *migration.MigrationFile) {
	output.Success("%s: %s", title, file.Version)
	output.Muted("  Up:   %s", file.UpPath)
	output.Muted("  Down: %s", file.DownPath)
}

func printDiffSummary(diff *migration.SchemaDiff) {
	if len(diff.TablesAdded) > 0 {
		output.Success("Tables to add: %d", len(diff.TablesAdded))
		for _, table := range diff.TablesAdded {
			fmt.Printf("    + %s\n", table.Name)
		}
	}
	if len(diff.TablesDropped) > 0 {
		output.Warning("Tables to drop: %d", len(diff.TablesDropped))
		for _, table := range diff.TablesDropped {
			fmt.Printf("    - %s\n", table.Name)
		}
	}
	if len(diff.TablesModified) > 0 {
		output.Info("Tables to modify: %d", len(diff.TablesModified))
		for _, td := range diff.TablesModified {
			fmt.Printf("    ~ %s\n", td.TableName)
			if n := len(td.ColumnsAdded); n > 0 {
				fmt.Printf("      + %d column(s)\n", n)
			}
			if n := len(td.ColumnsDropped); n > 0 {
				fmt.Printf("      - %d column(s)\n", n)
			}
			if n := len(td.ColumnsModified); n > 0 {
				fmt.Printf("      ~ %d column(s)\n", n)
			}
		}
	}
}

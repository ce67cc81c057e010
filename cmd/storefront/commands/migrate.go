package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/marshallshelly/storefront/cmd/storefront/output"
	"github.com/marshallshelly/storefront/cmd/storefront/tui"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/spf13/cobra"
)

var (
	// Migrate flags
	dryRun      bool
	all         bool
	steps       int
	target      string
	interactive bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations to keep the store schema in sync with the models.

Subcommands:
  up      - Apply pending migrations
  down    - Rollback migrations
  status  - Show migration status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations to update the database schema.

Examples:
  storefront migrate up --all              # Apply all pending migrations
  storefront migrate up --steps 1          # Apply next migration
  storefront migrate up --dry-run --all    # Preview migrations without applying`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp(cmd.Context())
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback migrations",
	Long: `Rollback applied migrations to revert database schema changes.

Examples:
  storefront migrate down --steps 1        # Rollback last migration
  storefront migrate down --target VERSION # Rollback to specific version
  storefront migrate down --dry-run        # Preview rollback without executing`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(cmd.Context())
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the status of all migrations (pending, applied, failed).

Examples:
  storefront migrate status                # Show migration status
  storefront migrate status --json         # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview migrations without applying")
	migrateUpCmd.Flags().BoolVar(&all, "all", false, "Apply all pending migrations")
	migrateUpCmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply")
	migrateUpCmd.MarkFlagsMutuallyExclusive("all", "steps")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode with TUI")
	migrateDownCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview rollback without executing")
	migrateDownCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to rollback")
	migrateDownCmd.Flags().StringVar(&target, "target", "", "Rollback to specific version")
}

// openMigrations connects, prepares schema_migrations and loads the files.
func openMigrations(ctx context.Context) (*migration.Executor, []migration.Migration, func(), error) {
	db, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	executor := migration.NewExecutor(db.Pool()).WithLogger(logger)
	if err := executor.Initialize(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	migrations, err := migration.NewGenerator(migrationsDir).LoadAll()
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return executor, migrations, db.Close, nil
}

func runMigrateUp(ctx context.Context) error {
	if interactive {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		return tui.RunMigrateUI(tui.ActionUp, url, migrationsDir)
	}
	if !all && steps <= 0 {
		return fmt.Errorf("must specify --all or --steps")
	}

	executor, migrations, closeDB, err := openMigrations(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if len(migrations) == 0 {
		output.Warning("No migrations found in %s", migrationsDir)
		return nil
	}

	pending, err := executor.Pending(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}
	if !all && steps < len(pending) {
		pending = pending[:steps]
	}
	if len(pending) == 0 {
		output.Info("No pending migrations")
		return nil
	}

	if dryRun {
		output.Section("DRY RUN - Preview")
		output.Info("The following migrations would be applied:")
		for _, mig := range pending {
			fmt.Printf("  %s %s - %s\n", output.StatusIcon("pending"), mig.Version, mig.Name)
		}
		return nil
	}

	if err := executor.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() { _ = executor.Unlock(ctx) }()

	output.Section("Applying Migrations")
	for _, mig := range pending {
		output.Info("Applying %s - %s...", mig.Version, mig.Name)
		if err := executor.Apply(ctx, mig, false); err != nil {
			output.Error("Failed to apply migration %s: %v", mig.Version, err)
			return fmt.Errorf("failed to apply migration %s: %w", mig.Version, err)
		}
		output.Success("Applied %s", mig.Version)
	}

	fmt.Println()
	output.Success("Successfully applied %d migration(s)", len(pending))
	return nil
}

func runMigrateDown(ctx context.Context) error {
	if interactive {
		url, err := databaseURL()
		if err != nil {
			return err
		}
		return tui.RunMigrateUI(tui.ActionDown, url, migrationsDir)
	}

	executor, migrations, closeDB, err := openMigrations(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if !dryRun {
		if err := executor.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() { _ = executor.Unlock(ctx) }()
	}

	if target != "" {
		if dryRun {
			output.Info("DRY RUN - Would rollback to version %s", target)
			return nil
		}

		output.Section("Rolling Back to Target Version")
		n, err := executor.RollbackTo(ctx, target, migrations, false)
		if err != nil {
			output.Error("Failed to rollback to %s: %v", target, err)
			return err
		}
		output.Success("Rolled back %d migration(s) to version %s", n, target)
		return nil
	}

	applied, err := executor.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	if len(applied) == 0 {
		output.Info("No migrations to rollback")
		return nil
	}

	toRollback := min(steps, len(applied))

	if dryRun {
		output.Section("DRY RUN - Preview")
		output.Info("The following migrations would be rolled back:")
		for i := len(applied) - 1; i >= len(applied)-toRollback; i-- {
			fmt.Printf("  %s %s - %s\n", output.StatusIcon("applied"), applied[i].Version, applied[i].Name)
		}
		return nil
	}

	output.Section("Rolling Back Migrations")
	n, err := executor.RollbackSteps(ctx, migrations, toRollback, false)
	if err != nil {
		output.Error("%v", err)
		return err
	}

	fmt.Println()
	output.Success("Successfully rolled back %d migration(s)", n)
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	executor, migrations, closeDB, err := openMigrations(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	if len(migrations) == 0 {
		output.Warning("No migrations found in %s", migrationsDir)
		return nil
	}

	status, err := executor.GetStatus(ctx, migrations)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	if err := executor.Validate(ctx, migrations); err != nil {
		output.Warning("%v", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	_, _ = fmt.Fprintln(w, "-------\t----\t------\t----------")

	for _, record := range status {
		appliedAt := "N/A"
		if record.AppliedAt != nil {
			appliedAt = record.AppliedAt.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n",
			record.Version,
			record.Name,
			output.StatusIcon(string(record.Status)),
			record.Status,
			appliedAt,
		)
	}
	_ = w.Flush()

	counts := make(map[migration.MigrationStatus]int)
	for _, record := range status {
		counts[record.Status]++
	}

	fmt.Printf("\nSummary: %d applied, %d pending", counts[migration.StatusApplied], counts[migration.StatusPending])
	if n := counts[migration.StatusFailed]; n > 0 {
		fmt.Printf(", %d failed", n)
	}
	fmt.Println()

	for _, record := range status {
		if record.Status == migration.StatusFailed && record.Error != nil {
			output.Error("%s: %s", record.Version, *record.Error)
		}
	}
	return nil
}

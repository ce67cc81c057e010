package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/marshallshelly/storefront/pkg/models"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	dbURL         string
	migrationsDir string
	verbose       bool
	jsonOutput    bool
	logFormat     string

	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront database tooling",
	Long: `storefront manages the PostgreSQL schema of the online store: catalog,
customers, orders and carts.

Features:
  - Schema defined by tagged Go models
  - Migration generation from schema diffs
  - Database introspection
  - Interactive TUI and non-interactive CLI modes
  - YAML fixtures for development data`,
	Version:           "0.4.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (default: $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "./migrations", "Directory for migration files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

// setup loads .env, builds the logger and registers the models.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	level := os.Getenv(runtime.EnvLogLevel)
	if verbose {
		level = "debug"
	}
	var err error
	logger, err = runtime.NewLogger(slogLevel(level), logFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	return models.RegisterAll(nil)
}

// slogLevel maps pgx trace levels onto the four slog levels.
func slogLevel(level string) string {
	switch level {
	case "trace":
		return "debug"
	case "none", "":
		return "warn"
	default:
		return level
	}
}

// databaseURL returns --db, falling back to the environment.
func databaseURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	cfg, err := runtime.ConfigFromEnv()
	if err != nil {
		return "", fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg.ConnString(), nil
}

// connect opens a pool with statement tracing routed through the logger.
func connect(ctx context.Context) (*runtime.DB, error) {
	url, err := databaseURL()
	if err != nil {
		return nil, err
	}
	traceLevel := "warn"
	if verbose {
		traceLevel = "debug"
	}
	db, err := runtime.ConnectWithURL(ctx, url,
		runtime.WithLogger(logger),
		runtime.WithTraceLevel(traceLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marshallshelly/storefront/pkg/runtime"
)

// DefaultLockID is the advisory lock key that serialises migration runs.
const DefaultLockID int64 = 1234567890

// Executor applies migrations and tracks them in schema_migrations.
type Executor struct {
	pool   *pgxpool.Pool
	lockID int64
	logger *slog.Logger

	// lockConn holds the session that owns the advisory lock.
	lockConn *pgxpool.Conn
}

// NewExecutor creates a new migration executor.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{
		pool:   pool,
		lockID: DefaultLockID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// WithLogger sets the logger used to report applied migrations.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version varchar(14) PRIMARY KEY,
			name varchar(255) NOT NULL,
			status varchar(20) NOT NULL DEFAULT 'pending',
			applied_at timestamptz,
			error text,
			created_at timestamptz NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_schema_migrations_status ON schema_migrations (status);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Lock blocks until the advisory lock is held. The lock belongs to one
// pooled connection, which stays checked out until Unlock.
func (e *Executor) Lock(ctx context.Context) error {
	if e.lockConn != nil {
		return nil
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		conn.Release()
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	e.lockConn = conn
	return nil
}

// TryLock attempts to take the advisory lock without blocking.
func (e *Executor) TryLock(ctx context.Context) (bool, error) {
	if e.lockConn != nil {
		return true, nil
	}
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}
	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", e.lockID).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("failed to try migration lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}
	e.lockConn = conn
	return true, nil
}

// Unlock releases the advisory lock.
func (e *Executor) Unlock(ctx context.Context) error {
	if e.lockConn == nil {
		return fmt.Errorf("migration lock is not held")
	}
	conn := e.lockConn
	e.lockConn = nil
	defer conn.Release()

	var released bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", e.lockID).Scan(&released); err != nil {
		return fmt.Errorf("failed to release migration lock: %w", err)
	}
	if !released {
		return fmt.Errorf("migration lock was not held")
	}
	return nil
}

func (e *Executor) queryRecords(ctx context.Context, where string) ([]MigrationRecord, error) {
	rows, err := e.pool.Query(ctx, "SELECT version, name, status, applied_at, error FROM schema_migrations "+where+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.Version, &r.Name, &r.Status, &r.AppliedAt, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetAppliedMigrations returns applied migrations, oldest first.
func (e *Executor) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.queryRecords(ctx, "WHERE status = 'applied'")
}

// GetAllMigrations returns every tracked migration, oldest first.
func (e *Executor) GetAllMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.queryRecords(ctx, "")
}

// IsMigrationApplied checks if a specific migration has been applied.
func (e *Executor) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	var applied bool
	err := e.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1 AND status = 'applied')",
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return applied, nil
}

// Apply runs a migration's up SQL in one transaction. On failure the
// transaction is rolled back and the failure is recorded separately.
func (e *Executor) Apply(ctx context.Context, m Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, m.Version)
	if err != nil {
		return err
	}
	if applied {
		return &runtime.MigrationError{Version: m.Version, Message: "already applied", Err: errAlreadyApplied}
	}
	if dryRun {
		e.logger.Info("dry run", "version", m.Version, "name", m.Name, "statements", len(SplitStatements(m.UpSQL)))
		return nil
	}

	err = pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		if err := execStatements(ctx, tx, m.UpSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, applied_at, error)
			VALUES ($1, $2, 'applied', $3, NULL)
			ON CONFLICT (version) DO UPDATE
			SET name = EXCLUDED.name, status = 'applied', applied_at = EXCLUDED.applied_at, error = NULL`,
			m.Version, m.Name, time.Now())
		return err
	})
	if err != nil {
		e.recordFailure(ctx, m, err)
		return &runtime.MigrationError{Version: m.Version, Message: "apply failed", Err: err}
	}

	e.logger.Info("migration applied", "version", m.Version, "name", m.Name)
	return nil
}

func (e *Executor) recordFailure(ctx context.Context, m Migration, cause error) {
	_, err := e.pool.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, status, error)
		VALUES ($1, $2, 'failed', $3)
		ON CONFLICT (version) DO UPDATE SET status = 'failed', error = EXCLUDED.error`,
		m.Version, m.Name, cause.Error())
	if err != nil {
		e.logger.Warn("could not record migration failure", "version", m.Version, "error", err)
	}
}

// Rollback runs a migration's down SQL and forgets the migration.
func (e *Executor) Rollback(ctx context.Context, m Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, m.Version)
	if err != nil {
		return err
	}
	if !applied {
		return &runtime.MigrationError{Version: m.Version, Message: "not applied", Err: errNotApplied}
	}
	if dryRun {
		e.logger.Info("dry run rollback", "version", m.Version, "name", m.Name)
		return nil
	}

	err = pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		if err := execStatements(ctx, tx, m.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
		return err
	})
	if err != nil {
		return &runtime.MigrationError{Version: m.Version, Message: "rollback failed", Err: err}
	}

	e.logger.Info("migration rolled back", "version", m.Version, "name", m.Name)
	return nil
}

var (
	errAlreadyApplied = errors.New("migration already applied")
	errNotApplied     = errors.New("migration not applied")
)

func execStatements(ctx context.Context, tx pgx.Tx, sql string) error {
	for i, stmt := range SplitStatements(sql) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, runtime.ClassifyError(err))
		}
	}
	return nil
}

// ApplyAll applies every pending migration in order and returns how many
// ran.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration, dryRun bool) (int, error) {
	return e.ApplySteps(ctx, migrations, 0, dryRun)
}

// ApplySteps applies up to steps pending migrations; 0 means all.
func (e *Executor) ApplySteps(ctx context.Context, migrations []Migration, steps int, dryRun bool) (int, error) {
	pending, err := e.Pending(ctx, migrations)
	if err != nil {
		return 0, err
	}
	if steps > 0 && steps < len(pending) {
		pending = pending[:steps]
	}
	for i, m := range pending {
		if err := e.Apply(ctx, m, dryRun); err != nil {
			return i, fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}
	}
	return len(pending), nil
}

// Pending returns the migrations not yet applied, in order.
func (e *Executor) Pending(ctx context.Context, migrations []Migration) ([]Migration, error) {
	applied, err := e.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// RollbackSteps rolls back the last steps applied migrations, newest first.
func (e *Executor) RollbackSteps(ctx context.Context, migrations []Migration, steps int, dryRun bool) (int, error) {
	applied, err := e.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	byVersion := indexMigrations(migrations)

	count := 0
	for i := len(applied) - 1; i >= 0 && count < steps; i-- {
		m, ok := byVersion[applied[i].Version]
		if !ok {
			return count, fmt.Errorf("migration file not found for version %s", applied[i].Version)
		}
		if err := e.Rollback(ctx, m, dryRun); err != nil {
			return count, fmt.Errorf("failed to rollback migration %s: %w", m.Version, err)
		}
		count++
	}
	return count, nil
}

// RollbackTo rolls back every applied migration newer than targetVersion.
func (e *Executor) RollbackTo(ctx context.Context, targetVersion string, migrations []Migration, dryRun bool) (int, error) {
	applied, err := e.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	byVersion := indexMigrations(migrations)

	count := 0
	for i := len(applied) - 1; i >= 0; i-- {
		record := applied[i]
		if record.Version <= targetVersion {
			break
		}
		m, ok := byVersion[record.Version]
		if !ok {
			return count, fmt.Errorf("migration file not found for version %s", record.Version)
		}
		if err := e.Rollback(ctx, m, dryRun); err != nil {
			return count, fmt.Errorf("failed to rollback migration %s: %w", record.Version, err)
		}
		count++
	}
	return count, nil
}

func indexMigrations(migrations []Migration) map[string]Migration {
	byVersion := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	return byVersion
}

// GetStatus returns a record for every migration file, pending ones
// included.
func (e *Executor) GetStatus(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	tracked, err := e.GetAllMigrations(ctx)
	if err != nil {
		return nil, err
	}
	byVersion := make(map[string]MigrationRecord, len(tracked))
	for _, r := range tracked {
		byVersion[r.Version] = r
	}

	records := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		if r, ok := byVersion[m.Version]; ok {
			records = append(records, r)
			continue
		}
		records = append(records, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}
	return records, nil
}

// Validate checks that every tracked migration still has its files.
func (e *Executor) Validate(ctx context.Context, migrations []Migration) error {
	tracked, err := e.GetAllMigrations(ctx)
	if err != nil {
		return err
	}
	byVersion := indexMigrations(migrations)

	var missing []string
	for _, r := range tracked {
		if _, ok := byVersion[r.Version]; !ok {
			missing = append(missing, r.Version)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing migration files: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SplitStatements splits a SQL script on top-level semicolons, ignoring
// semicolons inside quotes and comments. Comment-only statements are
// dropped.
func SplitStatements(sql string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      rune
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" && !commentOnly(stmt) {
			statements = append(statements, stmt)
		}
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				current.WriteRune(runes[i])
				i++
			}
			if i < len(runes) {
				current.WriteRune('\n')
			}
		case r == ';':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return statements
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

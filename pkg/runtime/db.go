package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is a pgx connection pool whose errors come back classified.
type DB struct {
	pool   *pgxpool.Pool
	config *Config
	logger *slog.Logger
}

// Option configures Connect and ConnectWithURL.
type Option func(*connectOptions)

type connectOptions struct {
	logger     *slog.Logger
	traceLevel string
}

// WithLogger traces every statement through logger at the config's LogLevel.
func WithLogger(logger *slog.Logger) Option {
	return func(o *connectOptions) { o.logger = logger }
}

// WithTraceLevel overrides the statement trace level.
func WithTraceLevel(level string) Option {
	return func(o *connectOptions) { o.traceLevel = level }
}

// NewDB wraps an existing pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{
		pool:   pool,
		config: &Config{},
		logger: slog.Default(),
	}
}

// Connect opens a pool for config and pings it.
func Connect(ctx context.Context, config *Config, opts ...Option) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}

	o := connectOptions{traceLevel: config.LogLevel}
	for _, opt := range opts {
		opt(&o)
	}
	return open(ctx, poolConfig, config, o)
}

// ConnectWithURL opens a pool for a connection URL and pings it.
func ConnectWithURL(ctx context.Context, url string, opts ...Option) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}

	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}
	return open(ctx, poolConfig, &Config{URL: url}, o)
}

func open(ctx context.Context, poolConfig *pgxpool.Config, config *Config, o connectOptions) (*DB, error) {
	logger := slog.Default()
	if o.logger != nil {
		logger = o.logger
		tracer, err := NewTracer(o.logger, o.traceLevel)
		if err != nil {
			return nil, err
		}
		poolConfig.ConnConfig.Tracer = tracer
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("connected to database",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)))

	return &DB{pool: pool, config: config, logger: logger}, nil
}

// Pool returns the underlying pgxpool.Pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Logger returns the logger the DB was opened with.
func (db *DB) Logger() *slog.Logger {
	return db.logger
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.pool == nil {
		return ErrNoConnection
	}
	return db.pool.Ping(ctx)
}

// Begin starts a new transaction.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.pool == nil {
		return nil, ErrNoConnection
	}
	return db.pool.Begin(ctx)
}

// BeginTx starts a new transaction with options.
func (db *DB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if db.pool == nil {
		return nil, ErrNoConnection
	}
	return db.pool.BeginTx(ctx, txOptions)
}

// Exec executes a statement and returns the number of affected rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if db.pool == nil {
		return 0, ErrNoConnection
	}
	result, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, ClassifyError(&QueryError{Query: sql, Err: err})
	}
	return result.RowsAffected(), nil
}

// Query executes a query that returns rows.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if db.pool == nil {
		return nil, ErrNoConnection
	}
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ClassifyError(&QueryError{Query: sql, Err: err})
	}
	return rows, nil
}

// QueryRow executes a query that returns at most one row. Scan errors are
// classified, so a missing row matches ErrNotFound.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if db.pool == nil {
		return errRow{err: ErrNoConnection}
	}
	return ClassifiedRow(db.pool.QueryRow(ctx, sql, args...), sql)
}

// ClassifiedRow wraps row so that its Scan error passes through ClassifyError.
func ClassifiedRow(row pgx.Row, sql string) pgx.Row {
	return classifiedRow{row: row, sql: sql}
}

type classifiedRow struct {
	row pgx.Row
	sql string
}

func (r classifiedRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return ClassifyError(&QueryError{Query: r.sql, Err: err})
	}
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

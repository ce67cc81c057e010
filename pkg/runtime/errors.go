// Package runtime holds the database handle, configuration, logging and
// the error types shared by the query and store layers.
package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidModel is returned when an invalid model is provided.
	ErrInvalidModel = errors.New("invalid model")

	// ErrNoPrimaryKey is returned when a table has no primary key.
	ErrNoPrimaryKey = errors.New("no primary key defined")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a row points at a missing parent.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrProtected is returned when a delete is refused because other rows
	// still reference the target. It also matches ErrForeignKeyViolation.
	ErrProtected = errors.New("row is still referenced")

	// ErrNotNullViolation is returned when a required column is NULL.
	ErrNotNullViolation = errors.New("not null violation")

	// ErrCheckViolation is returned when a CHECK constraint fails.
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNumericOverflow is returned when a value exceeds its column's precision.
	ErrNumericOverflow = errors.New("numeric value out of range")

	// ErrManagedColumn is returned when code tries to write a server-managed timestamp.
	ErrManagedColumn = errors.New("column is managed by the database")

	// ErrTransactionClosed is returned when operating on a closed transaction.
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrNoConnection is returned when no database connection is available.
	ErrNoConnection = errors.New("no database connection")
)

// SQLSTATE codes classified by ClassifyError.
const (
	codeRestrictViolation   = "23001"
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
	codeNumericOverflow     = "22003"
)

// ConstraintError is a PostgreSQL integrity violation in classified form.
type ConstraintError struct {
	Kind       error // one of the Err* sentinels
	Table      string
	Constraint string
	Column     string
	Detail     string
	pgErr      *pgconn.PgError
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Table != "" {
		fmt.Fprintf(&b, " on %s", e.Table)
	}
	if e.Constraint != "" {
		fmt.Fprintf(&b, " (%s)", e.Constraint)
	} else if e.Column != "" {
		fmt.Fprintf(&b, " (column %s)", e.Column)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is matches the sentinel in Kind. A protected delete is also a foreign
// key violation.
func (e *ConstraintError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrProtected && target == ErrForeignKeyViolation
}

// Unwrap returns the original *pgconn.PgError.
func (e *ConstraintError) Unwrap() error {
	return e.pgErr
}

// Protected marks a foreign key violation raised by a DELETE as
// ErrProtected. Other errors are returned unchanged.
func Protected(err error) error {
	var ce *ConstraintError
	if errors.As(err, &ce) && ce.Kind == ErrForeignKeyViolation {
		ce.Kind = ErrProtected
	}
	return err
}

// ClassifyError converts integrity violations into *ConstraintError and
// pgx.ErrNoRows into ErrNotFound. Other errors are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var existing *ConstraintError
	if errors.As(err, &existing) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var kind error
	switch pgErr.Code {
	case codeForeignKeyViolation:
		kind = ErrForeignKeyViolation
	case codeRestrictViolation:
		kind = ErrProtected
	case codeUniqueViolation:
		kind = ErrDuplicateKey
	case codeNotNullViolation:
		kind = ErrNotNullViolation
	case codeCheckViolation:
		kind = ErrCheckViolation
	case codeNumericOverflow:
		kind = ErrNumericOverflow
	default:
		return err
	}

	ce := &ConstraintError{
		Kind:       kind,
		Table:      pgErr.TableName,
		Constraint: pgErr.ConstraintName,
		Column:     pgErr.ColumnName,
		Detail:     pgErr.Detail,
		pgErr:      pgErr,
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return &QueryError{Query: qe.Query, Err: ce}
	}
	return ce
}

// ValidationError reports invalid field values found before any SQL is sent.
type ValidationError struct {
	Model  string
	Fields []FieldError
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	if e.Model == "" {
		return "validation failed: " + strings.Join(msgs, "; ")
	}
	return fmt.Sprintf("invalid %s: %s", e.Model, strings.Join(msgs, "; "))
}

// Field returns the error for the named field, if any.
func (e *ValidationError) Field(name string) *FieldError {
	for i := range e.Fields {
		if e.Fields[i].Field == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// MigrationError represents a migration error.
type MigrationError struct {
	Version string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error (version %s): %s: %v", e.Version, e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

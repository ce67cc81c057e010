// Package migration diffs registered models against a live database, plans
// the DDL between them and applies versioned SQL files.
package migration

import (
	"time"

	"github.com/marshallshelly/storefront/pkg/schema"
)

// Migration is one versioned schema change.
type Migration struct {
	Version   string // e.g. "20240101120000"
	Name      string // e.g. "create_catalog"
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
}

// MigrationFile is a migration on disk.
type MigrationFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// SchemaDiff describes how to move a database schema to the code schema.
// Dropped items carry their full metadata so the down migration can
// recreate them.
type SchemaDiff struct {
	TablesAdded    []*schema.TableMetadata
	TablesDropped  []*schema.TableMetadata
	TablesModified []TableDiff
}

// TableDiff represents changes to a single table.
type TableDiff struct {
	TableName          string
	ColumnsAdded       []schema.ColumnMetadata
	ColumnsDropped     []schema.ColumnMetadata
	ColumnsModified    []ColumnDiff
	IndexesAdded       []schema.IndexMetadata
	IndexesDropped     []schema.IndexMetadata
	ForeignKeysAdded   []schema.ForeignKeyMetadata
	ForeignKeysDropped []schema.ForeignKeyMetadata
	ConstraintsAdded   []schema.ConstraintMetadata
	ConstraintsDropped []schema.ConstraintMetadata
	PrimaryKeyChanged  *PrimaryKeyChange
}

// ColumnDiff represents changes to a single column.
type ColumnDiff struct {
	ColumnName     string
	OldColumn      schema.ColumnMetadata
	NewColumn      schema.ColumnMetadata
	TypeChanged    bool
	NullChanged    bool
	DefaultChanged bool
}

// PrimaryKeyChange represents a change to the primary key.
type PrimaryKeyChange struct {
	Old *schema.PrimaryKeyMetadata
	New *schema.PrimaryKeyMetadata
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	StatusPending MigrationStatus = "pending"
	StatusApplied MigrationStatus = "applied"
	StatusFailed  MigrationStatus = "failed"
)

// MigrationRecord is a row of schema_migrations, or a pending file.
type MigrationRecord struct {
	Version   string          `json:"version"`
	Name      string          `json:"name"`
	Status    MigrationStatus `json:"status"`
	AppliedAt *time.Time      `json:"applied_at,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// HasChanges reports whether the diff is non-empty.
func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesAdded) > 0 ||
		len(d.TablesDropped) > 0 ||
		len(d.TablesModified) > 0
}

// HasChanges reports whether the table has any changes.
func (t *TableDiff) HasChanges() bool {
	return len(t.ColumnsAdded) > 0 ||
		len(t.ColumnsDropped) > 0 ||
		len(t.ColumnsModified) > 0 ||
		len(t.IndexesAdded) > 0 ||
		len(t.IndexesDropped) > 0 ||
		len(t.ForeignKeysAdded) > 0 ||
		len(t.ForeignKeysDropped) > 0 ||
		len(t.ConstraintsAdded) > 0 ||
		len(t.ConstraintsDropped) > 0 ||
		t.PrimaryKeyChanged != nil
}

// GenerateVersion returns a timestamp version, YYYYMMDDHHmmss in UTC.
func GenerateVersion() string {
	return time.Now().UTC().Format("20060102150405")
}

// GenerateFileName returns {version}_{name}.{up|down}.sql.
func GenerateFileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}

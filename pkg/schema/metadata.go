// Package schema turns tagged Go structs into PostgreSQL table metadata.
package schema

import "reflect"

// TableMetadata describes one table: its columns, keys, constraints and
// the relationship fields declared on the Go type.
type TableMetadata struct {
	Name          string
	GoType        reflect.Type `json:"-"`
	Columns       []ColumnMetadata
	PrimaryKey    *PrimaryKeyMetadata
	ForeignKeys   []ForeignKeyMetadata
	Indexes       []IndexMetadata
	Constraints   []ConstraintMetadata
	Relationships []RelationshipMetadata `json:",omitempty"`

	// Junction is set on link tables synthesised from a manyToMany field.
	Junction bool `json:",omitempty"`
}

// ColumnMetadata describes a single column.
type ColumnMetadata struct {
	Name          string
	GoField       string
	GoType        reflect.Type `json:"-"`
	SQLType       string
	Nullable      bool
	Default       *string
	Unique        bool
	AutoIncrement bool
	Identity      *IdentityColumn
	Position      int

	// AutoNowAdd columns are stamped by the server on insert and never
	// written by the application afterwards.
	AutoNowAdd bool
	// AutoNow columns are stamped on insert and refreshed on every update.
	AutoNow bool
}

// Managed reports whether the server owns the column's value.
func (c ColumnMetadata) Managed() bool {
	return c.AutoNow || c.AutoNowAdd
}

// IdentityGeneration is the GENERATED clause of an identity column.
type IdentityGeneration string

const (
	// IdentityAlways rejects explicit values unless OVERRIDING SYSTEM VALUE is used.
	IdentityAlways IdentityGeneration = "ALWAYS"
	// IdentityByDefault accepts explicit values.
	IdentityByDefault IdentityGeneration = "BY DEFAULT"
)

// IdentityColumn marks a GENERATED ... AS IDENTITY column.
type IdentityColumn struct {
	Generation IdentityGeneration
}

// PrimaryKeyMetadata describes a primary key.
type PrimaryKeyMetadata struct {
	Name    string
	Columns []string
}

// ReferenceAction is the ON DELETE / ON UPDATE rule of a foreign key.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// ForeignKeyMetadata describes a foreign key constraint.
type ForeignKeyMetadata struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferenceAction
	OnUpdate          ReferenceAction
}

// IndexMetadata describes a standalone index.
type IndexMetadata struct {
	Name    string
	Columns []string
	Unique  bool
	Type    string // btree, hash, gin, gist, brin
}

// ConstraintType identifies table-level constraints other than keys.
type ConstraintType string

const (
	UniqueConstraint ConstraintType = "UNIQUE"
	CheckConstraint  ConstraintType = "CHECK"
)

// ConstraintMetadata describes a UNIQUE or CHECK constraint.
type ConstraintMetadata struct {
	Name       string
	Type       ConstraintType
	Columns    []string
	Expression string
}

// RelationType identifies how two models relate.
type RelationType string

const (
	BelongsTo  RelationType = "belongsTo"
	HasOne     RelationType = "hasOne"
	HasMany    RelationType = "hasMany"
	ManyToMany RelationType = "manyToMany"
)

// RelationshipMetadata describes a relationship field. Relationship fields
// carry no column of their own; they are filled by preloading.
type RelationshipMetadata struct {
	SourceTable string
	SourceField string
	Type        RelationType
	// ForeignKey is the column holding the reference: on the source table
	// for belongsTo, on the target table for hasOne/hasMany, and the
	// source-side column of the join table for manyToMany.
	ForeignKey string
	// References is the referenced column, usually the primary key.
	References  string
	TargetType  reflect.Type `json:"-"`
	TargetTable string
	// JoinTable and TargetKey are only set for manyToMany.
	JoinTable *string
	TargetKey string
}

// GetColumnByName returns the column with the given name or nil.
func (t *TableMetadata) GetColumnByName(name string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// GetColumnByField returns the column mapped to the given Go field or nil.
func (t *TableMetadata) GetColumnByField(field string) *ColumnMetadata {
	for i := range t.Columns {
		if t.Columns[i].GoField == field {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *TableMetadata) IsPrimaryKey(column string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// ForeignKeyFor returns the single-column foreign key on column, if any.
func (t *TableMetadata) ForeignKeyFor(column string) *ForeignKeyMetadata {
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if len(fk.Columns) == 1 && fk.Columns[0] == column {
			return fk
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

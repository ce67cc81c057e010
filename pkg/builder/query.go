// Package builder provides typed query builders over registered models.
package builder

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/storefront/pkg/schema"
)

// Querier runs SQL. *DB and *Tx both implement it, so every builder works
// inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Query represents a generic database query.
type Query interface {
	// ToSQL generates the SQL query and parameter values.
	ToSQL() (sql string, args []any, err error)
}

// Executable represents a query that can be executed.
type Executable interface {
	Query
	// Exec executes the query and returns the number of affected rows.
	Exec(ctx context.Context) (int64, error)
}

// SelectQuery represents a SELECT query with type safety.
type SelectQuery[T any] struct {
	q         Querier
	table     *schema.TableMetadata
	err       error
	columns   []string
	where     []Condition
	joins     []Join
	orderBy   []OrderBy
	limit     *int
	offset    *int
	forUpdate bool
	preloads  []string
}

// InsertQuery represents an INSERT query.
type InsertQuery[T any] struct {
	q          Querier
	table      *schema.TableMetadata
	err        error
	values     []T
	returning  []string
	onConflict *OnConflict
}

// UpdateQuery represents an UPDATE query.
type UpdateQuery[T any] struct {
	q         Querier
	table     *schema.TableMetadata
	err       error
	sets      []setClause
	where     []Condition
	returning []string
}

type setClause struct {
	column string
	value  any
}

// DeleteQuery represents a DELETE query.
type DeleteQuery[T any] struct {
	q         Querier
	table     *schema.TableMetadata
	err       error
	where     []Condition
	returning []string
}

// Condition represents a WHERE condition.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Logic    LogicOperator
	Not      bool
	Group    []Condition
}

// Join represents a JOIN clause. Condition is raw SQL.
type Join struct {
	Type      JoinType
	Table     string
	Condition string
}

// OrderBy represents an ORDER BY clause.
type OrderBy struct {
	Column    string
	Direction OrderDirection
	NullsPos  NullsPosition
}

// OnConflict represents an ON CONFLICT ... DO NOTHING clause.
type OnConflict struct {
	Columns []string
}

// Operator represents a comparison operator.
type Operator string

const (
	OpEqual              Operator = "="
	OpNotEqual           Operator = "!="
	OpGreaterThan        Operator = ">"
	OpGreaterThanOrEqual Operator = ">="
	OpLessThan           Operator = "<"
	OpLessThanOrEqual    Operator = "<="
	OpIn                 Operator = "IN"
	OpNotIn              Operator = "NOT IN"
	OpLike               Operator = "LIKE"
	OpILike              Operator = "ILIKE"
	OpIsNull             Operator = "IS NULL"
	OpIsNotNull          Operator = "IS NOT NULL"
	OpBetween            Operator = "BETWEEN"
	// OpAny compares against every element of one array parameter.
	OpAny Operator = "= ANY"
)

// LogicOperator joins a condition to the one before it.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// JoinType represents a type of JOIN.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// OrderDirection represents the sort direction.
type OrderDirection string

const (
	Asc  OrderDirection = "ASC"
	Desc OrderDirection = "DESC"
)

// NullsPosition represents NULL positioning in ORDER BY.
type NullsPosition string

const (
	NullsFirst   NullsPosition = "NULLS FIRST"
	NullsLast    NullsPosition = "NULLS LAST"
	NullsDefault NullsPosition = ""
)

package builder

import (
	"fmt"
	"reflect"
	"strings"
)

// WhereBuilder builds WHERE clauses with numbered placeholders.
type WhereBuilder struct {
	conditions []Condition
	paramStart int
}

// NewWhereBuilder creates a WhereBuilder whose first placeholder is $1.
func NewWhereBuilder() *WhereBuilder {
	return NewWhereBuilderWithStart(1)
}

// NewWhereBuilderWithStart creates a WhereBuilder whose first placeholder
// is $paramStart.
func NewWhereBuilderWithStart(paramStart int) *WhereBuilder {
	return &WhereBuilder{paramStart: paramStart}
}

// Add adds a condition to the WHERE clause.
func (w *WhereBuilder) Add(conditions ...Condition) {
	w.conditions = append(w.conditions, conditions...)
}

// Build generates the WHERE clause SQL and arguments.
func (w *WhereBuilder) Build() (string, []any, error) {
	if len(w.conditions) == 0 {
		return "", nil, nil
	}
	sql, args, err := w.buildConditions(w.conditions, w.paramStart)
	if err != nil {
		return "", nil, err
	}
	return "WHERE " + sql, args, nil
}

func (w *WhereBuilder) buildConditions(conditions []Condition, paramStart int) (string, []any, error) {
	var sb strings.Builder
	var args []any
	paramNum := paramStart

	for i, cond := range conditions {
		if i > 0 {
			logic := cond.Logic
			if logic == "" {
				logic = LogicAnd
			}
			sb.WriteString(" " + string(logic) + " ")
		}

		var (
			part     string
			partArgs []any
			err      error
		)
		if len(cond.Group) > 0 {
			part, partArgs, err = w.buildConditions(cond.Group, paramNum)
			part = "(" + part + ")"
		} else {
			part, partArgs, err = w.buildCondition(cond, paramNum)
		}
		if err != nil {
			return "", nil, err
		}
		if cond.Not {
			part = "NOT (" + part + ")"
		}

		sb.WriteString(part)
		args = append(args, partArgs...)
		paramNum += len(partArgs)
	}

	return sb.String(), args, nil
}

func (w *WhereBuilder) buildCondition(cond Condition, paramNum int) (string, []any, error) {
	if cond.Column == "" {
		return "", nil, fmt.Errorf("condition has no column")
	}
	column := quoteColumn(cond.Column)

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpLike, OpILike:
		if cond.Value == nil {
			return "", nil, fmt.Errorf("%s %s NULL: use IsNull or IsNotNull", cond.Column, cond.Operator)
		}
		return fmt.Sprintf("%s %s $%d", column, cond.Operator, paramNum), []any{cond.Value}, nil

	case OpIn, OpNotIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%s requires a list of values", cond.Operator)
		}
		// An empty list matches nothing (IN) or everything (NOT IN).
		if len(values) == 0 {
			if cond.Operator == OpIn {
				return "FALSE", nil, nil
			}
			return "TRUE", nil, nil
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = fmt.Sprintf("$%d", paramNum+i)
		}
		return fmt.Sprintf("%s %s (%s)", column, cond.Operator, strings.Join(placeholders, ", ")), values, nil

	case OpAny:
		if v := reflect.ValueOf(cond.Value); v.Kind() != reflect.Slice {
			return "", nil, fmt.Errorf("ANY requires a slice, got %T", cond.Value)
		}
		return fmt.Sprintf("%s = ANY($%d)", column, paramNum), []any{cond.Value}, nil

	case OpIsNull:
		return column + " IS NULL", nil, nil

	case OpIsNotNull:
		return column + " IS NOT NULL", nil, nil

	case OpBetween:
		values, ok := cond.Value.([]any)
		if !ok || len(values) != 2 {
			return "", nil, fmt.Errorf("BETWEEN requires [min, max]")
		}
		return fmt.Sprintf("%s BETWEEN $%d AND $%d", column, paramNum, paramNum+1), values, nil

	default:
		return "", nil, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

func compare(column string, op Operator, value any) Condition {
	return Condition{Column: column, Operator: op, Value: value, Logic: LogicAnd}
}

// Eq creates an equality condition.
func Eq(column string, value any) Condition { return compare(column, OpEqual, value) }

// NotEq creates a not-equal condition.
func NotEq(column string, value any) Condition { return compare(column, OpNotEqual, value) }

// Gt creates a greater-than condition.
func Gt(column string, value any) Condition { return compare(column, OpGreaterThan, value) }

// Gte creates a greater-than-or-equal condition.
func Gte(column string, value any) Condition { return compare(column, OpGreaterThanOrEqual, value) }

// Lt creates a less-than condition.
func Lt(column string, value any) Condition { return compare(column, OpLessThan, value) }

// Lte creates a less-than-or-equal condition.
func Lte(column string, value any) Condition { return compare(column, OpLessThanOrEqual, value) }

// In creates an IN condition.
func In(column string, values ...any) Condition { return compare(column, OpIn, values) }

// NotIn creates a NOT IN condition.
func NotIn(column string, values ...any) Condition { return compare(column, OpNotIn, values) }

// Any matches column against every element of slice, sent as one array
// parameter.
func Any(column string, slice any) Condition { return compare(column, OpAny, slice) }

// Like creates a LIKE condition.
func Like(column string, pattern string) Condition { return compare(column, OpLike, pattern) }

// ILike creates a case-insensitive LIKE condition.
func ILike(column string, pattern string) Condition { return compare(column, OpILike, pattern) }

// IsNull creates an IS NULL condition.
func IsNull(column string) Condition { return compare(column, OpIsNull, nil) }

// IsNotNull creates an IS NOT NULL condition.
func IsNotNull(column string) Condition { return compare(column, OpIsNotNull, nil) }

// Between creates a BETWEEN condition.
func Between(column string, low, high any) Condition {
	return compare(column, OpBetween, []any{low, high})
}

// Or joins cond to the previous condition with OR.
func Or(cond Condition) Condition {
	cond.Logic = LogicOr
	return cond
}

// Not negates a condition.
func Not(cond Condition) Condition {
	cond.Not = true
	return cond
}

// Group parenthesises conditions.
func Group(conditions ...Condition) Condition {
	return Condition{Group: conditions, Logic: LogicAnd}
}

package builder

import (
	"testing"
)

func TestWhereBuilder_Build(t *testing.T) {
	tests := []struct {
		name       string
		conditions []Condition
		wantSQL    string
		wantArgLen int
		wantErr    bool
	}{
		{
			name:    "empty",
			wantSQL: "",
		},
		{
			name:       "comparisons",
			conditions: []Condition{Gte("price", 1), Lt("price", 10), NotEq("title", "x")},
			wantSQL:    "WHERE price >= $1 AND price < $2 AND title != $3",
			wantArgLen: 3,
		},
		{
			name:       "in",
			conditions: []Condition{In("id", 1, 2, 3)},
			wantSQL:    "WHERE id IN ($1, $2, $3)",
			wantArgLen: 3,
		},
		{
			name:       "empty in matches nothing",
			conditions: []Condition{In("id")},
			wantSQL:    "WHERE FALSE",
		},
		{
			name:       "empty not in matches everything",
			conditions: []Condition{Eq("status", "P"), NotIn("id")},
			wantSQL:    "WHERE status = $1 AND TRUE",
			wantArgLen: 1,
		},
		{
			name:       "any sends one array",
			conditions: []Condition{Any("id", []int64{1, 2, 3})},
			wantSQL:    "WHERE id = ANY($1)",
			wantArgLen: 1,
		},
		{
			name:       "like and ilike",
			conditions: []Condition{Like("slug", "mug%"), Or(ILike("title", "%MUG%"))},
			wantSQL:    "WHERE slug LIKE $1 OR title ILIKE $2",
			wantArgLen: 2,
		},
		{
			name:       "null checks",
			conditions: []Condition{IsNull("customer_id"), IsNotNull("session_key")},
			wantSQL:    "WHERE customer_id IS NULL AND session_key IS NOT NULL",
		},
		{
			name:       "between",
			conditions: []Condition{Between("quantity", 1, 5)},
			wantSQL:    "WHERE quantity BETWEEN $1 AND $2",
			wantArgLen: 2,
		},
		{
			name:       "group numbers placeholders in order",
			conditions: []Condition{Eq("a", 1), Group(Eq("b", 2), Or(Eq("c", 3))), Eq("d", 4)},
			wantSQL:    "WHERE a = $1 AND (b = $2 OR c = $3) AND d = $4",
			wantArgLen: 4,
		},
		{
			name:       "not",
			conditions: []Condition{Not(Eq("status", "C"))},
			wantSQL:    "WHERE NOT (status = $1)",
			wantArgLen: 1,
		},
		{
			name:       "reserved column",
			conditions: []Condition{Eq("order", 1), Eq("cart_item.order", 2)},
			wantSQL:    `WHERE "order" = $1 AND cart_item."order" = $2`,
			wantArgLen: 2,
		},
		{
			name:       "comparison with nil",
			conditions: []Condition{Eq("customer_id", nil)},
			wantErr:    true,
		},
		{
			name:       "any needs a slice",
			conditions: []Condition{Any("id", 1)},
			wantErr:    true,
		},
		{
			name:       "unknown operator",
			conditions: []Condition{{Column: "id", Operator: "~~~", Value: 1}},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder()
			wb.Add(tt.conditions...)
			sql, args, err := wb.Build()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if sql != tt.wantSQL {
				t.Errorf("Build() sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgLen {
				t.Errorf("Build() args = %d, want %d", len(args), tt.wantArgLen)
			}
		})
	}
}

func TestWhereBuilder_Start(t *testing.T) {
	wb := NewWhereBuilderWithStart(3)
	wb.Add(Eq("id", 1), In("status", "P", "U"))
	sql, _, err := wb.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := "WHERE id = $3 AND status IN ($4, $5)"; sql != want {
		t.Errorf("sql = %s, want %s", sql, want)
	}
}

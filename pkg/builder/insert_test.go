package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInsertQuery_ToSQL(t *testing.T) {
	db := New(nil)
	mug := testProduct{CategoryID: 1, Title: "Mug", Price: decimal.RequireFromString("9.50")}

	tests := []struct {
		name       string
		query      func() *InsertQuery[testProduct]
		wantSQL    string
		wantArgLen int
		wantErr    bool
	}{
		{
			name:       "defaults and timestamps are left to the server",
			query:      func() *InsertQuery[testProduct] { return Insert[testProduct](db).Values(mug) },
			wantSQL:    "INSERT INTO products (category_id, title, price) VALUES ($1, $2, $3)",
			wantArgLen: 3,
		},
		{
			name: "explicit identity and defaulted value",
			query: func() *InsertQuery[testProduct] {
				p := mug
				p.ID = 42
				p.Inventory = 3
				return Insert[testProduct](db).Values(p)
			},
			wantSQL:    "INSERT INTO products (id, category_id, title, price, inventory) VALUES ($1, $2, $3, $4, $5)",
			wantArgLen: 5,
		},
		{
			name: "multi-row fills gaps with DEFAULT",
			query: func() *InsertQuery[testProduct] {
				stocked := mug
				stocked.Inventory = 5
				return Insert[testProduct](db).Values(mug, stocked)
			},
			wantSQL: "INSERT INTO products (category_id, title, price, inventory) " +
				"VALUES ($1, $2, $3, DEFAULT), ($4, $5, $6, $7)",
			wantArgLen: 7,
		},
		{
			name: "returning",
			query: func() *InsertQuery[testProduct] {
				return Insert[testProduct](db).Values(mug).Returning("id", "created_at")
			},
			wantSQL:    "INSERT INTO products (category_id, title, price) VALUES ($1, $2, $3) RETURNING id, created_at",
			wantArgLen: 3,
		},
		{
			name:    "no values",
			query:   func() *InsertQuery[testProduct] { return Insert[testProduct](db) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query().ToSQL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToSQL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if sql != tt.wantSQL {
				t.Errorf("ToSQL() sql =\n%s\nwant\n%s", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgLen {
				t.Errorf("ToSQL() args = %d, want %d", len(args), tt.wantArgLen)
			}
		})
	}
}

func TestInsertQuery_OnConflictDoNothing(t *testing.T) {
	db := New(nil)

	sql, _, err := Insert[testDiscount](db).Values(testDiscount{Code: "SPRING"}).OnConflictDoNothing("code").ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	if want := "INSERT INTO discounts (code) VALUES ($1) ON CONFLICT (code) DO NOTHING"; sql != want {
		t.Errorf("sql = %s, want %s", sql, want)
	}

	sql, _, err = Insert[testDiscount](db).Values(testDiscount{Code: "SPRING"}).OnConflictDoNothing().ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	if want := "INSERT INTO discounts (code) VALUES ($1) ON CONFLICT DO NOTHING"; sql != want {
		t.Errorf("sql = %s, want %s", sql, want)
	}
}

func TestInsertQuery_ExecReturningSelectsEveryColumn(t *testing.T) {
	rec := &recorder{}
	_, err := Insert[testDiscount](rec).Values(testDiscount{Code: "X"}).ExecReturning(context.Background())
	if !errors.Is(err, errStop) {
		t.Fatalf("ExecReturning() error = %v", err)
	}
	want := "INSERT INTO discounts (code) VALUES ($1) RETURNING id, code"
	if len(rec.sql) != 1 || rec.sql[0] != want {
		t.Errorf("recorded %v, want %s", rec.sql, want)
	}
}

package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marshallshelly/storefront/pkg/runtime"
)

func TestDeleteQuery_ToSQL(t *testing.T) {
	db := New(nil)

	tests := []struct {
		name       string
		query      func() *DeleteQuery[testProduct]
		wantSQL    string
		wantArgLen int
	}{
		{
			name:    "everything",
			query:   func() *DeleteQuery[testProduct] { return Delete[testProduct](db) },
			wantSQL: "DELETE FROM products",
		},
		{
			name: "by key",
			query: func() *DeleteQuery[testProduct] {
				return Delete[testProduct](db).Where(Eq("id", 1))
			},
			wantSQL:    "DELETE FROM products WHERE id = $1",
			wantArgLen: 1,
		},
		{
			name: "or and returning",
			query: func() *DeleteQuery[testProduct] {
				return Delete[testProduct](db).
					Where(Eq("inventory", 0)).
					Or(IsNull("title")).
					Returning("id")
			},
			wantSQL:    "DELETE FROM products WHERE inventory = $1 OR title IS NULL RETURNING id",
			wantArgLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query().ToSQL()
			if err != nil {
				t.Fatalf("ToSQL() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("ToSQL() sql = %s, want %s", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgLen {
				t.Errorf("ToSQL() args = %d, want %d", len(args), tt.wantArgLen)
			}
		})
	}
}

func TestDeleteQuery_ExecWithReturningCountsRows(t *testing.T) {
	rec := &recorder{}

	_, err := Delete[testProduct](rec).Where(Eq("id", 1)).Returning("id").Exec(context.Background())
	if !errors.Is(err, errStop) {
		t.Fatalf("Exec() error = %v", err)
	}
	if len(rec.sql) != 1 || rec.sql[0] != "DELETE FROM products WHERE id = $1 RETURNING id" {
		t.Errorf("recorded %v", rec.sql)
	}
}

func TestDeleteQuery_ReferencedRowIsProtected(t *testing.T) {
	fk := runtime.ClassifyError(&pgconn.PgError{Code: "23503", TableName: "categories"})

	for _, returning := range []bool{false, true} {
		rec := &recorder{err: fk}
		q := Delete[testCategory](rec).Where(Eq("id", 1))
		var err error
		if returning {
			_, err = q.ExecReturning(context.Background())
		} else {
			_, err = q.Exec(context.Background())
		}
		if !errors.Is(err, runtime.ErrProtected) {
			t.Errorf("returning=%v: error = %v, want ErrProtected", returning, err)
		}
	}
}

func TestDeleteQuery_OtherErrorsPassThrough(t *testing.T) {
	rec := &recorder{}

	_, err := Delete[testCategory](rec).Where(Eq("id", 1)).Exec(context.Background())
	if errors.Is(err, runtime.ErrProtected) || !errors.Is(err, errStop) {
		t.Errorf("Exec() error = %v", err)
	}
}

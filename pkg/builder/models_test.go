package builder

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type testCategory struct {
	ID    int64  `po:"id,primaryKey,identityByDefault"`
	Title string `po:"title,varchar(255),notNull"`

	Products []testProduct `po:"-,hasMany,foreignKey(category_id),references(id)"`
}

func (testCategory) TableName() string { return "categories" }

type testDiscount struct {
	ID   int64  `po:"id,primaryKey,identityByDefault"`
	Code string `po:"code,varchar(20),notNull,unique"`
}

func (testDiscount) TableName() string { return "discounts" }

type testProduct struct {
	ID         int64           `po:"id,primaryKey,identityByDefault"`
	CategoryID int64           `po:"category_id,bigint,notNull,fk(categories.id),onDelete(protect)"`
	Title      string          `po:"title,varchar(255),notNull"`
	Price      decimal.Decimal `po:"price,numeric(6,2),notNull"`
	Inventory  int32           `po:"inventory,integer,notNull,default(0)"`
	CreatedAt  time.Time       `po:"created_at,timestamptz,autoNowAdd"`
	UpdatedAt  time.Time       `po:"updated_at,timestamptz,autoNow"`

	Category  *testCategory  `po:"-,belongsTo,foreignKey(category_id)"`
	Discounts []testDiscount `po:"-,manyToMany,joinTable(products_discounts),foreignKey(product_id),targetKey(discount_id)"`
}

func (testProduct) TableName() string { return "products" }

// testAccount lives in a table whose name is a reserved word.
type testAccount struct {
	ID    int64  `po:"id,primaryKey,identityByDefault"`
	Order string `po:"order,varchar(20),notNull"`
}

func (testAccount) TableName() string { return "user" }

var errStop = errors.New("stop")

// recorder is a Querier that captures statements instead of running them.
type recorder struct {
	sql  []string
	args [][]any
	err  error // returned instead of errStop when set
}

func (r *recorder) record(sql string, args []any) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
}

func (r *recorder) fail() error {
	if r.err != nil {
		return r.err
	}
	return errStop
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	r.record(sql, args)
	return 0, r.fail()
}

func (r *recorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.record(sql, args)
	return nil, r.fail()
}

func (r *recorder) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	r.record(sql, args)
	return errRow{err: r.fail()}
}

package migration

import (
	"reflect"
	"testing"
	"time"

	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/shopspring/decimal"
)

type shopCategory struct {
	ID           int64  `po:"id,primaryKey,identityByDefault"`
	Title        string `po:"title,varchar(255),notNull"`
	TopProductID *int64 `po:"top_product_id,bigint,fk(products.id),onDelete(setNull)"`
}

func (shopCategory) TableName() string { return "categories" }

type shopProduct struct {
	ID         int64           `po:"id,primaryKey,identityByDefault"`
	CategoryID int64           `po:"category_id,bigint,notNull,fk(categories.id),onDelete(protect),index"`
	Slug       string          `po:"slug,varchar(50),notNull,index"`
	UnitPrice  decimal.Decimal `po:"unit_price,numeric(6,2),notNull,check(unit_price >= 0)"`
	Inventory  int32           `po:"inventory,integer,notNull,default(0)"`
	Created    time.Time       `po:"datetime_created,timestamptz,autoNowAdd"`
}

func (shopProduct) TableName() string { return "products" }

type shopComment struct {
	ID        int64  `po:"id,primaryKey,identityByDefault"`
	ProductID int64  `po:"product_id,bigint,notNull,fk(products.id),onDelete(cascade)"`
	User      string `po:"user,varchar(255),notNull"`
	Status    string `po:"status,varchar(2),notNull,default('W'),check(status IN ('W', 'A', 'UA'))"`
}

func (shopComment) TableName() string { return "comments" }

type shopItem struct {
	ID        int64 `po:"id,primaryKey,identityByDefault"`
	OrderID   int64 `po:"order_id,bigint,notNull,unique(order_product)"`
	ProductID int64 `po:"product_id,bigint,notNull,fk(products.id),onDelete(restrict),unique(order_product)"`
}

func (shopItem) TableName() string { return "order_items" }

func parse(t *testing.T, models ...any) []*schema.TableMetadata {
	t.Helper()
	p := schema.NewParser()
	tables := make([]*schema.TableMetadata, 0, len(models))
	for _, m := range models {
		table, err := p.Parse(reflect.TypeOf(m))
		if err != nil {
			t.Fatalf("Parse(%T) error = %v", m, err)
		}
		tables = append(tables, table)
	}
	return tables
}

func byName(tables []*schema.TableMetadata) map[string]*schema.TableMetadata {
	m := make(map[string]*schema.TableMetadata, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}

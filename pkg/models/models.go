// Package models declares the storefront entities and their table layout.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products. TopProduct is an optional featured product that
// is cleared when that product is deleted.
type Category struct {
	ID           int64  `po:"id,primaryKey,bigint,identityByDefault"`
	Title        string `po:"title,varchar(255),notNull" validate:"required,max=255"`
	Description  string `po:"description,varchar(500),notNull" validate:"required,max=500"`
	TopProductID *int64 `po:"top_product_id,bigint,fk(products.id),onDelete(setNull)"`

	TopProduct *Product  `po:"-,belongsTo,foreignKey(top_product_id),references(id)"`
	Products   []Product `po:"-,hasMany,foreignKey(category_id),references(id)"`
}

func (Category) TableName() string { return "categories" }

// Discount is a named discount that may apply to many products.
type Discount struct {
	ID          int64  `po:"id,primaryKey,bigint,identityByDefault"`
	Discount    string `po:"discount,varchar(255),notNull,default('')" validate:"max=255"`
	Description string `po:"description,text,notNull" validate:"required"`
}

func (Discount) TableName() string { return "discounts" }

type Product struct {
	ID               int64           `po:"id,primaryKey,bigint,identityByDefault"`
	CategoryID       int64           `po:"category_id,bigint,notNull,fk(categories.id),onDelete(protect),index" validate:"required"`
	Name             string          `po:"name,varchar(255),notNull" validate:"required,max=255"`
	Slug             string          `po:"slug,varchar(50),notNull,index" validate:"required,max=50,slug"`
	Description      string          `po:"description,text,notNull"`
	UnitPrice        decimal.Decimal `po:"unit_price,numeric(6,2),notNull,check(unit_price >= 0)" validate:"price"`
	Inventory        int32           `po:"inventory,integer,notNull,default(0),check(inventory >= 0)" validate:"gte=0"`
	DatetimeCreated  time.Time       `po:"datetime_created,timestamptz,autoNowAdd"`
	DatetimeModified time.Time       `po:"datetime_modified,timestamptz,autoNow"`

	Category  *Category  `po:"-,belongsTo,foreignKey(category_id),references(id)"`
	Discounts []Discount `po:"-,manyToMany,joinTable(products_discounts),foreignKey(product_id),targetKey(discount_id),references(id)"`
	Comments  []Comment  `po:"-,hasMany,foreignKey(product_id),references(id)"`
}

func (Product) TableName() string { return "products" }

func (p Product) String() string { return p.Name }

type Comment struct {
	ID               int64         `po:"id,primaryKey,bigint,identityByDefault"`
	ProductID        int64         `po:"product_id,bigint,notNull,fk(products.id),onDelete(cascade),index" validate:"required"`
	User             string        `po:"user,varchar(255),notNull" validate:"required,max=255"`
	Body             string        `po:"body,text,notNull" validate:"required"`
	Status           CommentStatus `po:"status,varchar(2),notNull,default('W'),check(status IN ('W', 'A', 'UA'))" validate:"omitempty,oneof=W A UA"`
	DatetimeCreated  time.Time     `po:"datetime_created,timestamptz,autoNowAdd"`
	DatetimeModified time.Time     `po:"datetime_modified,timestamptz,autoNow"`

	Product *Product `po:"-,belongsTo,foreignKey(product_id),references(id)"`
}

func (Comment) TableName() string { return "comments" }

type Customer struct {
	ID          int64      `po:"id,primaryKey,bigint,identityByDefault"`
	FirstName   string     `po:"first_name,varchar(255),notNull" validate:"required,max=255"`
	LastName    string     `po:"last_name,varchar(255),notNull" validate:"required,max=255"`
	Email       string     `po:"email,varchar(254),notNull" validate:"required,email,max=254"`
	PhoneNumber string     `po:"phone_number,varchar(255),notNull" validate:"required,max=255"`
	DateBirth   *time.Time `po:"date_birth,date"`

	Address *Address `po:"-,hasOne,foreignKey(customer_id),references(id)"`
	Orders  []Order  `po:"-,hasMany,foreignKey(customer_id),references(id)"`
}

func (Customer) TableName() string { return "customers" }

// FullName returns "First Last".
func (c Customer) FullName() string {
	return fmt.Sprintf("%s %s", c.FirstName, c.LastName)
}

// Address is a customer's single postal address, keyed by the customer.
type Address struct {
	CustomerID int64  `po:"customer_id,primaryKey,bigint,fk(customers.id),onDelete(cascade)" validate:"required"`
	Province   string `po:"province,varchar(255),notNull" validate:"required,max=255"`
	City       string `po:"city,varchar(255),notNull" validate:"required,max=255"`
	Street     string `po:"street,varchar(255),notNull" validate:"required,max=255"`
}

func (Address) TableName() string { return "address" }

type Order struct {
	ID              int64       `po:"id,primaryKey,bigint,identityByDefault"`
	CustomerID      int64       `po:"customer_id,bigint,notNull,fk(customers.id),onDelete(protect),index" validate:"required"`
	Status          OrderStatus `po:"status,varchar(1),notNull,default('U'),check(status IN ('P', 'U', 'C'))" validate:"omitempty,oneof=P U C"`
	DatetimeCreated time.Time   `po:"datetime_created,timestamptz,autoNowAdd"`

	Customer *Customer   `po:"-,belongsTo,foreignKey(customer_id),references(id)"`
	Items    []OrderItem `po:"-,hasMany,foreignKey(order_id),references(id)"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID              int64           `po:"id,primaryKey,bigint,identityByDefault"`
	OrderID         int64           `po:"order_id,bigint,notNull,fk(orders.id),onDelete(protect),unique(order_product)" validate:"required"`
	ProductID       int64           `po:"product_id,bigint,notNull,fk(products.id),onDelete(protect),index,unique(order_product)" validate:"required"`
	Quantity        int16           `po:"quantity,smallint,notNull"`
	UnitPrice       decimal.Decimal `po:"unit_price,numeric(6,2),notNull,check(unit_price >= 0)" validate:"price"`
	DatetimeCreated time.Time       `po:"datetime_created,timestamptz,autoNowAdd"`

	Product *Product `po:"-,belongsTo,foreignKey(product_id),references(id)"`
}

func (OrderItem) TableName() string { return "order_items" }

type Cart struct {
	ID        int64     `po:"id,primaryKey,bigint,identityByDefault"`
	CreatedAt time.Time `po:"created_at,timestamptz,autoNowAdd"`

	Items []CartItem `po:"-,hasMany,foreignKey(cart_id),references(id)"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID        int64 `po:"id,primaryKey,bigint,identityByDefault"`
	CartID    int64 `po:"cart_id,bigint,notNull,fk(carts.id),onDelete(cascade),unique(cart_product)" validate:"required"`
	ProductID int64 `po:"product_id,bigint,notNull,fk(products.id),onDelete(cascade),index,unique(cart_product)" validate:"required"`
	Quantity  int16 `po:"quantity,smallint,notNull"`

	Product *Product `po:"-,belongsTo,foreignKey(product_id),references(id)"`
}

func (CartItem) TableName() string { return "cart_items" }

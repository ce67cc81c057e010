// Package seed loads YAML fixtures into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/marshallshelly/storefront/pkg/models"
	"github.com/marshallshelly/storefront/pkg/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is a set of records that reference each other by key.
type Fixture struct {
	Categories []Category `yaml:"categories"`
	Discounts  []Discount `yaml:"discounts"`
	Products   []Product  `yaml:"products"`
	Customers  []Customer `yaml:"customers"`
	Orders     []Order    `yaml:"orders"`
	Carts      []Cart     `yaml:"carts"`
	Comments   []Comment  `yaml:"comments"`
}

type Category struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	TopProduct  string `yaml:"top_product,omitempty"`
}

type Discount struct {
	Key         string `yaml:"key"`
	Discount    string `yaml:"discount"`
	Description string `yaml:"description"`
}

type Product struct {
	Key         string   `yaml:"key"`
	Category    string   `yaml:"category"`
	Name        string   `yaml:"name"`
	Slug        string   `yaml:"slug"`
	Description string   `yaml:"description"`
	UnitPrice   string   `yaml:"unit_price"`
	Inventory   int32    `yaml:"inventory"`
	Discounts   []string `yaml:"discounts,omitempty"`
}

type Customer struct {
	Key         string   `yaml:"key"`
	FirstName   string   `yaml:"first_name"`
	LastName    string   `yaml:"last_name"`
	Email       string   `yaml:"email"`
	PhoneNumber string   `yaml:"phone_number"`
	DateBirth   string   `yaml:"date_birth,omitempty"`
	Address     *Address `yaml:"address,omitempty"`
}

type Address struct {
	Province string `yaml:"province"`
	City     string `yaml:"city"`
	Street   string `yaml:"street"`
}

type Order struct {
	Customer string      `yaml:"customer"`
	Status   string      `yaml:"status,omitempty"`
	Items    []OrderItem `yaml:"items"`
}

// OrderItem defaults its unit price to the product's current price.
type OrderItem struct {
	Product   string `yaml:"product"`
	Quantity  int16  `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price,omitempty"`
}

type Cart struct {
	Items []CartItem `yaml:"items"`
}

type CartItem struct {
	Product  string `yaml:"product"`
	Quantity int16  `yaml:"quantity"`
}

type Comment struct {
	Product string `yaml:"product"`
	User    string `yaml:"user"`
	Body    string `yaml:"body"`
	Status  string `yaml:"status,omitempty"`
}

// Result counts the rows Apply inserted, by table.
type Result map[string]int

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture and checks that keys are unique and every
// reference names a declared key.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixture) check() error {
	categories, err := keySet("category", len(f.Categories), func(i int) string { return f.Categories[i].Key })
	if err != nil {
		return err
	}
	discounts, err := keySet("discount", len(f.Discounts), func(i int) string { return f.Discounts[i].Key })
	if err != nil {
		return err
	}
	products, err := keySet("product", len(f.Products), func(i int) string { return f.Products[i].Key })
	if err != nil {
		return err
	}
	customers, err := keySet("customer", len(f.Customers), func(i int) string { return f.Customers[i].Key })
	if err != nil {
		return err
	}

	for _, c := range f.Categories {
		if c.TopProduct != "" && !products[c.TopProduct] {
			return fmt.Errorf("category %s: unknown top product %q", c.Key, c.TopProduct)
		}
	}
	for _, p := range f.Products {
		if !categories[p.Category] {
			return fmt.Errorf("product %s: unknown category %q", p.Key, p.Category)
		}
		for _, d := range p.Discounts {
			if !discounts[d] {
				return fmt.Errorf("product %s: unknown discount %q", p.Key, d)
			}
		}
	}
	for i, o := range f.Orders {
		if !customers[o.Customer] {
			return fmt.Errorf("order %d: unknown customer %q", i+1, o.Customer)
		}
		for _, item := range o.Items {
			if !products[item.Product] {
				return fmt.Errorf("order %d: unknown product %q", i+1, item.Product)
			}
		}
	}
	for i, c := range f.Carts {
		for _, item := range c.Items {
			if !products[item.Product] {
				return fmt.Errorf("cart %d: unknown product %q", i+1, item.Product)
			}
		}
	}
	for i, c := range f.Comments {
		if !products[c.Product] {
			return fmt.Errorf("comment %d: unknown product %q", i+1, c.Product)
		}
	}
	return nil
}

func keySet(kind string, n int, key func(int) string) (map[string]bool, error) {
	keys := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			return nil, fmt.Errorf("%s %d: key is required", kind, i+1)
		}
		if keys[k] {
			return nil, fmt.Errorf("duplicate %s key %q", kind, k)
		}
		keys[k] = true
	}
	return keys, nil
}

// Apply inserts the fixture in one transaction, parents before children.
// Nothing is written if any record fails. Fixtures not built by Parse are
// checked the same way before the transaction starts.
func Apply(ctx context.Context, s *store.Store, f *Fixture) (Result, error) {
	if f == nil {
		return nil, errors.New("nil fixture")
	}
	if err := f.check(); err != nil {
		return nil, err
	}

	var result Result
	err := s.WithTx(ctx, func(tx *store.Store) error {
		a := &applier{
			s:          tx,
			result:     make(Result),
			categories: make(map[string]int64),
			discounts:  make(map[string]int64),
			products:   make(map[string]*models.Product),
			customers:  make(map[string]int64),
		}
		if err := a.apply(ctx, f); err != nil {
			return err
		}
		result = a.result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type applier struct {
	s      *store.Store
	result Result

	categories map[string]int64
	discounts  map[string]int64
	products   map[string]*models.Product
	customers  map[string]int64
}

func (a *applier) apply(ctx context.Context, f *Fixture) error {
	for _, c := range f.Categories {
		m := &models.Category{Title: c.Title, Description: c.Description}
		if err := a.s.Categories.Create(ctx, m); err != nil {
			return fmt.Errorf("category %s: %w", c.Key, err)
		}
		a.categories[c.Key] = m.ID
		a.result["categories"]++
	}

	for _, d := range f.Discounts {
		m := &models.Discount{Discount: d.Discount, Description: d.Description}
		if err := a.s.Discounts.Create(ctx, m); err != nil {
			return fmt.Errorf("discount %s: %w", d.Key, err)
		}
		a.discounts[d.Key] = m.ID
		a.result["discounts"]++
	}

	for _, p := range f.Products {
		price, err := decimal.NewFromString(p.UnitPrice)
		if err != nil {
			return fmt.Errorf("product %s: invalid unit_price %q: %w", p.Key, p.UnitPrice, err)
		}
		m := &models.Product{
			CategoryID:  a.categories[p.Category],
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			UnitPrice:   price,
			Inventory:   p.Inventory,
		}
		if err := a.s.Products.Create(ctx, m); err != nil {
			return fmt.Errorf("product %s: %w", p.Key, err)
		}
		a.products[p.Key] = m
		a.result["products"]++

		for _, d := range p.Discounts {
			if err := a.s.Products.AddDiscount(ctx, m.ID, a.discounts[d]); err != nil {
				return fmt.Errorf("product %s: %w", p.Key, err)
			}
			a.result["products_discounts"]++
		}
	}

	// Top products can only be set once the products exist.
	for _, c := range f.Categories {
		if c.TopProduct == "" {
			continue
		}
		top := a.products[c.TopProduct].ID
		if _, err := a.s.Categories.SetTopProduct(ctx, a.categories[c.Key], &top); err != nil {
			return fmt.Errorf("category %s: %w", c.Key, err)
		}
	}

	for _, c := range f.Customers {
		if err := a.customer(ctx, c); err != nil {
			return fmt.Errorf("customer %s: %w", c.Key, err)
		}
	}

	for i, o := range f.Orders {
		if err := a.order(ctx, o); err != nil {
			return fmt.Errorf("order %d: %w", i+1, err)
		}
	}

	for i, c := range f.Carts {
		cart := &models.Cart{}
		if err := a.s.Carts.Create(ctx, cart); err != nil {
			return fmt.Errorf("cart %d: %w", i+1, err)
		}
		a.result["carts"]++
		for _, item := range c.Items {
			m := &models.CartItem{CartID: cart.ID, ProductID: a.products[item.Product].ID, Quantity: item.Quantity}
			if err := a.s.CartItems.Create(ctx, m); err != nil {
				return fmt.Errorf("cart %d: %w", i+1, err)
			}
			a.result["cart_items"]++
		}
	}

	for i, c := range f.Comments {
		m := &models.Comment{
			ProductID: a.products[c.Product].ID,
			User:      c.User,
			Body:      c.Body,
			Status:    models.CommentStatus(c.Status),
		}
		if err := a.s.Comments.Create(ctx, m); err != nil {
			return fmt.Errorf("comment %d: %w", i+1, err)
		}
		a.result["comments"]++
	}
	return nil
}

func (a *applier) customer(ctx context.Context, c Customer) error {
	m := &models.Customer{
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
	}
	if c.DateBirth != "" {
		born, err := time.Parse(time.DateOnly, c.DateBirth)
		if err != nil {
			return fmt.Errorf("invalid date_birth %q: %w", c.DateBirth, err)
		}
		m.DateBirth = &born
	}
	if err := a.s.Customers.Create(ctx, m); err != nil {
		return err
	}
	a.customers[c.Key] = m.ID
	a.result["customers"]++

	if c.Address == nil {
		return nil
	}
	addr := &models.Address{
		CustomerID: m.ID,
		Province:   c.Address.Province,
		City:       c.Address.City,
		Street:     c.Address.Street,
	}
	if err := a.s.Addresses.Create(ctx, addr); err != nil {
		return err
	}
	a.result["address"]++
	return nil
}

func (a *applier) order(ctx context.Context, o Order) error {
	order := &models.Order{CustomerID: a.customers[o.Customer], Status: models.OrderStatus(o.Status)}
	if err := a.s.Orders.Create(ctx, order); err != nil {
		return err
	}
	a.result["orders"]++

	for _, item := range o.Items {
		product := a.products[item.Product]
		price := product.UnitPrice
		if item.UnitPrice != "" {
			var err error
			if price, err = decimal.NewFromString(item.UnitPrice); err != nil {
				return fmt.Errorf("invalid unit_price %q: %w", item.UnitPrice, err)
			}
		}
		m := &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: item.Quantity, UnitPrice: price}
		if err := a.s.OrderItems.Create(ctx, m); err != nil {
			return fmt.Errorf("item %s: %w", item.Product, err)
		}
		a.result["order_items"]++
	}
	return nil
}

package store

import (
	"context"

	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/models"
)

type CustomerStore struct {
	*Repository[models.Customer]
}

// Orders returns a customer's orders, newest first.
func (c *CustomerStore) Orders(ctx context.Context, customerID int64) ([]models.Order, error) {
	return c.s.Orders.List(ctx, ListOptions{
		Where: []builder.Condition{builder.Eq("customer_id", customerID)},
		Desc:  true,
	})
}

// AddressStore is keyed by customer id.
type AddressStore struct {
	*Repository[models.Address]
}

type OrderStore struct {
	*Repository[models.Order]
}

// SetStatus moves an order to any valid status.
func (o *OrderStore) SetStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, invalidStatus(o.table.Name, string(status), "P U C")
	}
	return o.Update(ctx, orderID, map[string]any{"status": status})
}

// Items returns an order's items with their products loaded.
func (o *OrderStore) Items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return o.s.OrderItems.List(ctx, ListOptions{
		Where:   []builder.Condition{builder.Eq("order_id", orderID)},
		Preload: []string{"Product"},
	})
}

type OrderItemStore struct {
	*Repository[models.OrderItem]
}

type CartStore struct {
	*Repository[models.Cart]
}

// Items returns a cart's items with their products loaded.
func (c *CartStore) Items(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	return c.s.CartItems.List(ctx, ListOptions{
		Where:   []builder.Condition{builder.Eq("cart_id", cartID)},
		Preload: []string{"Product"},
	})
}

type CartItemStore struct {
	*Repository[models.CartItem]
}

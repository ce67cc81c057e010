// Package store provides validated repositories for the storefront models.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/models"
)

// Store groups the entity repositories over one Querier. A Store bound to
// a transaction is obtained through WithTx.
type Store struct {
	q        builder.Querier
	validate *validator.Validate
	logger   *slog.Logger
	depth    *atomic.Int64

	Categories *CategoryStore
	Discounts  *DiscountStore
	Products   *ProductStore
	Comments   *CommentStore
	Customers  *CustomerStore
	Addresses  *AddressStore
	Orders     *OrderStore
	OrderItems *OrderItemStore
	Carts      *CartStore
	CartItems  *CartItemStore
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store. q is usually a *builder.DB.
func New(q builder.Querier, opts ...Option) *Store {
	s := &Store{
		validate: newValidator(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		depth:    new(atomic.Int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bind(q)
	return s
}

func (s *Store) bind(q builder.Querier) {
	s.q = q
	s.Categories = &CategoryStore{newRepository[models.Category](s)}
	s.Discounts = &DiscountStore{newRepository[models.Discount](s)}
	s.Products = &ProductStore{newRepository[models.Product](s)}
	s.Comments = &CommentStore{newRepository[models.Comment](s)}
	s.Customers = &CustomerStore{newRepository[models.Customer](s)}
	s.Addresses = &AddressStore{newRepository[models.Address](s)}
	s.Orders = &OrderStore{newRepository[models.Order](s)}
	s.OrderItems = &OrderItemStore{newRepository[models.OrderItem](s)}
	s.Carts = &CartStore{newRepository[models.Cart](s)}
	s.CartItems = &CartItemStore{newRepository[models.CartItem](s)}
}

// Querier returns the Querier the store runs on.
func (s *Store) Querier() builder.Querier {
	return s.q
}

// WithTx runs fn with a Store bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Called on a Store
// that is already inside a transaction, fn runs under a savepoint.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	switch q := s.q.(type) {
	case *builder.DB:
		return builder.RunInTx(ctx, q, func(tx *builder.Tx) error {
			return fn(s.withQuerier(tx))
		})
	case *builder.Tx:
		name := fmt.Sprintf("store_sp_%d", s.depth.Add(1))
		if err := q.Savepoint(ctx, name); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			if rbErr := q.RollbackToSavepoint(ctx, name); rbErr != nil {
				return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
			}
			return err
		}
		return q.ReleaseSavepoint(ctx, name)
	default:
		return fmt.Errorf("store: %T does not support transactions", s.q)
	}
}

func (s *Store) withQuerier(q builder.Querier) *Store {
	tx := &Store{validate: s.validate, logger: s.logger, depth: new(atomic.Int64)}
	tx.bind(q)
	return tx
}

//go:build integration

package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/migration"
	"github.com/marshallshelly/storefront/pkg/models"
	"github.com/marshallshelly/storefront/pkg/registry"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

// setupStore starts a database with the storefront schema.
func setupStore(t *testing.T) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	ctx := context.Background()
	pool, cleanup := setupTestDB(t)

	require.NoError(t, models.RegisterAll(nil))
	all := registry.AllTables()
	tables := make([]*schema.TableMetadata, 0, len(all))
	for _, name := range slices.Sorted(maps.Keys(all)) {
		tables = append(tables, all[name])
	}
	ddl, err := migration.NewPlanner().CreateSchemaSQL(tables)
	require.NoError(t, err)
	for _, stmt := range migration.SplitStatements(ddl) {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	return New(builder.New(runtime.NewDB(pool))), pool, cleanup
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedCatalog(t *testing.T, s *Store) (*models.Category, *models.Product) {
	t.Helper()
	ctx := context.Background()

	category := &models.Category{Title: "Books", Description: "Paper"}
	require.NoError(t, s.Categories.Create(ctx, category))

	product := &models.Product{
		CategoryID:  category.ID,
		Name:        "Go in Practice",
		Slug:        "go-in-practice",
		Description: "A book",
		UnitPrice:   price("9.99"),
		Inventory:   5,
	}
	require.NoError(t, s.Products.Create(ctx, product))
	return category, product
}

func seedOrder(t *testing.T, s *Store) (*models.Customer, *models.Order) {
	t.Helper()
	ctx := context.Background()

	customer := &models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PhoneNumber: "555"}
	require.NoError(t, s.Customers.Create(ctx, customer))

	order := &models.Order{CustomerID: customer.ID}
	require.NoError(t, s.Orders.Create(ctx, order))
	return customer, order
}

func TestIntegration_ExampleScenario(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Categories.Create(ctx, &models.Category{ID: 1, Title: "Books", Description: "Paper"}))
	require.NoError(t, s.Products.Create(ctx, &models.Product{
		ID: 10, CategoryID: 1, Name: "Novel", Slug: "novel", UnitPrice: price("9.99"), Inventory: 5,
	}))

	err := s.Categories.Delete(ctx, int64(1))
	require.ErrorIs(t, err, runtime.ErrProtected)
	require.ErrorIs(t, err, runtime.ErrForeignKeyViolation)

	require.NoError(t, s.Products.Delete(ctx, int64(10)))
	require.NoError(t, s.Categories.Delete(ctx, int64(1)))
}

func TestIntegration_CreateFillsServerColumns(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	assert.NotZero(t, product.ID)
	assert.False(t, product.DatetimeCreated.IsZero())
	assert.False(t, product.DatetimeModified.IsZero())

	comment := &models.Comment{ProductID: product.ID, User: "bob", Body: "great"}
	require.NoError(t, s.Comments.Create(ctx, comment))
	assert.Equal(t, models.CommentWaiting, comment.Status)

	_, order := seedOrder(t, s)
	assert.Equal(t, models.OrderUnpaid, order.Status)

	d := &models.Discount{Description: "no code"}
	require.NoError(t, s.Discounts.Create(ctx, d))
	assert.Equal(t, "", d.Discount)
}

func TestIntegration_UpdateRefreshesModified(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	time.Sleep(10 * time.Millisecond)

	updated, err := s.Products.Update(ctx, product.ID, map[string]any{"inventory": 2, "unit_price": "12.50"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), updated.Inventory)
	assert.True(t, price("12.50").Equal(updated.UnitPrice))
	assert.True(t, updated.DatetimeModified.After(product.DatetimeModified))
	assert.True(t, updated.DatetimeCreated.Equal(product.DatetimeCreated))

	_, err = s.Products.Update(ctx, product.ID, map[string]any{"datetime_created": time.Now()})
	assert.ErrorIs(t, err, runtime.ErrManagedColumn)

	_, err = s.Products.Update(ctx, int64(9999), map[string]any{"inventory": 1})
	assert.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestIntegration_NonNegativeAmounts(t *testing.T) {
	s, pool, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)

	_, err := s.Products.Update(ctx, product.ID, map[string]any{"inventory": -1})
	var ve *runtime.ValidationError
	require.ErrorAs(t, err, &ve)

	// The database enforces the same rules when the validator is bypassed.
	_, err = builder.Update[models.Product](s.Querier()).
		Set("inventory", -1).
		Where(builder.Eq("id", product.ID)).
		Exec(ctx)
	assert.ErrorIs(t, err, runtime.ErrCheckViolation)

	_, err = pool.Exec(ctx, "UPDATE products SET unit_price = -1 WHERE id = $1", product.ID)
	assert.Error(t, err)

	stored, err := s.Products.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(5), stored.Inventory)
	assert.True(t, price("9.99").Equal(stored.UnitPrice))
}

func TestIntegration_CustomerWithOrdersIsProtected(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	customer, order := seedOrder(t, s)
	require.NoError(t, s.Addresses.Create(ctx, &models.Address{CustomerID: customer.ID, Province: "P", City: "C", Street: "S"}))

	err := s.Customers.Delete(ctx, customer.ID)
	require.ErrorIs(t, err, runtime.ErrProtected)

	var pgErr interface{ SQLState() string }
	require.True(t, errors.As(err, &pgErr), "original PgError must stay reachable")
	assert.Equal(t, "23503", pgErr.SQLState())

	require.NoError(t, s.Orders.Delete(ctx, order.ID))
	require.NoError(t, s.Customers.Delete(ctx, customer.ID))

	// The address went with its customer.
	_, err = s.Addresses.Get(ctx, customer.ID)
	assert.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestIntegration_ProductDeletion(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	_, order := seedOrder(t, s)

	cart := &models.Cart{}
	require.NoError(t, s.Carts.Create(ctx, cart))
	assert.False(t, cart.CreatedAt.IsZero())
	require.NoError(t, s.CartItems.Create(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{ProductID: product.ID, User: "bob", Body: "ok"}))

	item := &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 1, UnitPrice: price("9.99")}
	require.NoError(t, s.OrderItems.Create(ctx, item))

	err := s.Products.Delete(ctx, product.ID)
	require.ErrorIs(t, err, runtime.ErrProtected)

	require.NoError(t, s.OrderItems.Delete(ctx, item.ID))
	require.NoError(t, s.Products.Delete(ctx, product.ID))

	n, err := s.CartItems.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Comments.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The cart itself survives.
	_, err = s.Carts.Get(ctx, cart.ID)
	assert.NoError(t, err)
}

func TestIntegration_UniquePairs(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	customer, order := seedOrder(t, s)

	first := &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 1, UnitPrice: price("9.99")}
	require.NoError(t, s.OrderItems.Create(ctx, first))
	second := &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 2, UnitPrice: price("9.99")}
	err := s.OrderItems.Create(ctx, second)
	require.ErrorIs(t, err, runtime.ErrDuplicateKey)

	var ce *runtime.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "order_items_order_id_product_id_key", ce.Constraint)

	addr := &models.Address{CustomerID: customer.ID, Province: "P", City: "C", Street: "S"}
	require.NoError(t, s.Addresses.Create(ctx, addr))
	again := &models.Address{CustomerID: customer.ID, Province: "Q", City: "D", Street: "T"}
	assert.ErrorIs(t, s.Addresses.Create(ctx, again), runtime.ErrDuplicateKey)

	cart := &models.Cart{}
	require.NoError(t, s.Carts.Create(ctx, cart))
	require.NoError(t, s.CartItems.Create(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}))
	err = s.CartItems.Create(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 3})
	assert.ErrorIs(t, err, runtime.ErrDuplicateKey)
}

func TestIntegration_TopProductCleared(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	category, product := seedCatalog(t, s)
	other := &models.Category{Title: "Featured", Description: "Staff picks"}
	require.NoError(t, s.Categories.Create(ctx, other))

	updated, err := s.Categories.SetTopProduct(ctx, other.ID, &product.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TopProductID)

	require.NoError(t, s.Products.Delete(ctx, product.ID))

	reloaded, err := s.Categories.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.TopProductID)

	// With the product gone the original category can be deleted too.
	require.NoError(t, s.Categories.Delete(ctx, category.ID))
}

func TestIntegration_Discounts(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	summer := &models.Discount{Discount: "SUMMER", Description: "10% off"}
	winter := &models.Discount{Discount: "WINTER", Description: "20% off"}
	require.NoError(t, s.Discounts.Create(ctx, summer))
	require.NoError(t, s.Discounts.Create(ctx, winter))

	require.NoError(t, s.Products.AddDiscount(ctx, product.ID, winter.ID))
	require.NoError(t, s.Products.AddDiscount(ctx, product.ID, summer.ID))
	require.NoError(t, s.Products.AddDiscount(ctx, product.ID, summer.ID))

	linked, err := s.Products.Discounts(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, "WINTER", linked[0].Discount)

	full, err := s.Products.WithRelations(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Category)
	assert.Equal(t, "Books", full.Category.Title)
	assert.Len(t, full.Discounts, 2)
	assert.NotNil(t, full.Comments)
	assert.Empty(t, full.Comments)

	require.NoError(t, s.Products.RemoveDiscount(ctx, product.ID, winter.ID))
	assert.ErrorIs(t, s.Products.RemoveDiscount(ctx, product.ID, winter.ID), runtime.ErrNotFound)

	// Deleting a discount removes its links.
	require.NoError(t, s.Discounts.Delete(ctx, summer.ID))
	linked, err = s.Products.Discounts(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)

	assert.ErrorIs(t, s.Products.AddDiscount(ctx, product.ID, 9999), runtime.ErrForeignKeyViolation)
}

func TestIntegration_StatusTransitions(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, order := seedOrder(t, s)
	for _, status := range []models.OrderStatus{models.OrderPaid, models.OrderCanceled, models.OrderUnpaid, models.OrderPaid} {
		updated, err := s.Orders.SetStatus(ctx, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	_, product := seedCatalog(t, s)
	comment := &models.Comment{ProductID: product.ID, User: "bob", Body: "hi"}
	require.NoError(t, s.Comments.Create(ctx, comment))
	_, err := s.Comments.SetStatus(ctx, comment.ID, models.CommentApproved)
	require.NoError(t, err)

	approved, err := s.Comments.ByProduct(ctx, product.ID, models.CommentApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
	waiting, err := s.Comments.ByProduct(ctx, product.ID, models.CommentWaiting)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestIntegration_OrderAndCartItems(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	_, product := seedCatalog(t, s)
	customer, order := seedOrder(t, s)
	require.NoError(t, s.OrderItems.Create(ctx, &models.OrderItem{OrderID: order.ID, ProductID: product.ID, Quantity: 2, UnitPrice: price("9.99")}))

	items, err := s.Orders.Items(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "go-in-practice", items[0].Product.Slug)

	orders, err := s.Customers.Orders(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	cart := &models.Cart{}
	require.NoError(t, s.Carts.Create(ctx, cart))
	require.NoError(t, s.CartItems.Create(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 4}))
	cartItems, err := s.Carts.Items(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, cartItems, 1)
	assert.Equal(t, int16(4), cartItems[0].Quantity)

	// Deleting the cart takes its items with it.
	require.NoError(t, s.Carts.Delete(ctx, cart.ID))
	n, err := s.CartItems.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIntegration_WithTx(t *testing.T) {
	s, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Store) error {
		require.NoError(t, tx.Categories.Create(ctx, &models.Category{Title: "Temp", Description: "Rolled back"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Categories.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rolled back")

	err = s.WithTx(ctx, func(tx *Store) error {
		if err := tx.Categories.Create(ctx, &models.Category{Title: "Kept", Description: "Outer"}); err != nil {
			return err
		}
		// A failing nested step rolls back to its savepoint only.
		nested := tx.WithTx(ctx, func(inner *Store) error {
			if err := inner.Categories.Create(ctx, &models.Category{Title: "Dropped", Description: "Inner"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, nested, boom)
		return nil
	})
	require.NoError(t, err)

	all, err := s.Categories.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Kept", all[0].Title)
}

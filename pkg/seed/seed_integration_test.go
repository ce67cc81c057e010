//go:build integration

package seed

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
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
	"github.com/marshallshelly/storefront/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupStore(t *testing.T) (*store.Store, func()) {
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

	return store.New(builder.New(runtime.NewDB(pool))), func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
}

func TestIntegration_Apply(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	f, err := Load(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	result, err := Apply(ctx, s, f)
	require.NoError(t, err)
	assert.Equal(t, Result{
		"categories":         2,
		"discounts":          2,
		"products":           2,
		"products_discounts": 2,
		"customers":          2,
		"address":            1,
		"orders":             2,
		"order_items":        3,
		"carts":              1,
		"cart_items":         1,
		"comments":           2,
	}, result)

	book, err := s.Products.BySlug(ctx, "the-go-programming-language")
	require.NoError(t, err)

	books, err := s.Categories.Get(ctx, book.CategoryID)
	require.NoError(t, err)
	require.NotNil(t, books.TopProductID)
	assert.Equal(t, book.ID, *books.TopProductID)

	discounts, err := s.Products.Discounts(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, discounts, 2)
	assert.Equal(t, "SUMMER10", discounts[0].Discount)
	assert.Empty(t, discounts[1].Discount)

	orders, err := s.Orders.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, models.OrderPaid, orders[0].Status)
	assert.Equal(t, models.OrderUnpaid, orders[1].Status)

	items, err := s.Orders.Items(ctx, orders[0].ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "39.99", items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "79.00", items[1].UnitPrice.StringFixed(2))

	comments, err := s.Comments.ByProduct(ctx, book.ID, "")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, models.CommentApproved, comments[0].Status)
}

func TestIntegration_ApplyRollsBack(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	f, err := Parse([]byte(`
categories:
  - key: c
    title: Tools
    description: Hand tools
products:
  - key: p
    category: c
    name: Hammer
    slug: hammer
    unit_price: "5.00"
    inventory: -1
`))
	require.NoError(t, err)

	_, err = Apply(ctx, s, f)
	var verr *runtime.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.ErrorContains(t, err, "product p")

	n, err := s.Categories.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	assert.Len(t, f.Categories, 2)
	assert.Len(t, f.Discounts, 2)
	assert.Len(t, f.Products, 2)
	assert.Len(t, f.Customers, 2)
	assert.Len(t, f.Orders, 2)
	assert.Len(t, f.Carts, 1)
	assert.Len(t, f.Comments, 2)

	assert.Equal(t, "go-book", f.Categories[0].TopProduct)
	assert.Equal(t, "39.99", f.Products[0].UnitPrice)
	assert.Equal(t, []string{"summer", "blank"}, f.Products[0].Discounts)
	require.NotNil(t, f.Customers[0].Address)
	assert.Equal(t, "London", f.Customers[0].Address.City)
	assert.Nil(t, f.Customers[1].Address)
	assert.Equal(t, "79.00", f.Orders[0].Items[1].UnitPrice)
	assert.Empty(t, f.Orders[1].Status)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read fixture")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "malformed",
			yaml: "categories: [",
			want: "failed to parse fixture",
		},
		{
			name: "missing key",
			yaml: "categories:\n  - title: Books\n",
			want: "category 1: key is required",
		},
		{
			name: "duplicate key",
			yaml: "categories:\n  - key: a\n  - key: a\n",
			want: `duplicate category key "a"`,
		},
		{
			name: "unknown category",
			yaml: "products:\n  - key: p\n    category: nope\n",
			want: `product p: unknown category "nope"`,
		},
		{
			name: "unknown discount",
			yaml: "categories:\n  - key: c\nproducts:\n  - key: p\n    category: c\n    discounts: [x]\n",
			want: `product p: unknown discount "x"`,
		},
		{
			name: "unknown top product",
			yaml: "categories:\n  - key: c\n    top_product: p\n",
			want: `category c: unknown top product "p"`,
		},
		{
			name: "unknown customer",
			yaml: "orders:\n  - customer: ghost\n",
			want: `order 1: unknown customer "ghost"`,
		},
		{
			name: "unknown cart product",
			yaml: "carts:\n  - items:\n      - product: p\n        quantity: 1\n",
			want: `cart 1: unknown product "p"`,
		},
		{
			name: "unknown comment product",
			yaml: "comments:\n  - product: p\n    user: u\n",
			want: `comment 1: unknown product "p"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Products)
}

func TestApply_ChecksReferences(t *testing.T) {
	// No connection: a reference error must surface before any query runs.
	s := store.New(builder.New(nil))

	tests := []struct {
		name    string
		fixture *Fixture
		wantErr string
	}{
		{
			name:    "nil fixture",
			wantErr: "nil fixture",
		},
		{
			name:    "comment on unknown product",
			fixture: &Fixture{Comments: []Comment{{Product: "x", User: "bob", Body: "hi"}}},
			wantErr: `comment 1: unknown product "x"`,
		},
		{
			name: "top product missing",
			fixture: &Fixture{
				Categories: []Category{{Key: "books", Title: "Books", Description: "Paper", TopProduct: "nope"}},
			},
			wantErr: `category books: unknown top product "nope"`,
		},
		{
			name: "order for unknown customer",
			fixture: &Fixture{
				Orders: []Order{{Customer: "ghost"}},
			},
			wantErr: `order 1: unknown customer "ghost"`,
		},
		{
			name:    "product without key",
			fixture: &Fixture{Products: []Product{{Name: "Hammer"}}},
			wantErr: "product 1: key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				result Result
				err    error
			)
			require.NotPanics(t, func() {
				result, err = Apply(context.Background(), s, tt.fixture)
			})
			assert.Nil(t, result)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

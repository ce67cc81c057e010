package builder

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/marshallshelly/storefront/pkg/registry"
)

func TestLoadRelationships_BelongsTo(t *testing.T) {
	table, err := registry.GetOrRegister(testProduct{})
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	rec := &recorder{}
	products := []testProduct{{ID: 1, CategoryID: 5}, {ID: 2, CategoryID: 5}, {ID: 3, CategoryID: 6}}
	err = loadRelationships(context.Background(), rec, table, &products, []string{"Category"})
	if !errors.Is(err, errStop) {
		t.Fatalf("loadRelationships() error = %v", err)
	}

	want := "SELECT categories.id, categories.title FROM categories WHERE id = ANY($1)"
	if len(rec.sql) != 1 || rec.sql[0] != want {
		t.Fatalf("recorded %v, want %s", rec.sql, want)
	}
	keys, ok := rec.args[0][0].([]any)
	if !ok || !reflect.DeepEqual(keys, []any{int64(5), int64(6)}) {
		t.Errorf("keys = %#v, want distinct category ids", rec.args[0][0])
	}
}

func TestLoadRelationships_HasMany(t *testing.T) {
	table, err := registry.GetOrRegister(testCategory{})
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	rec := &recorder{}
	categories := []testCategory{{ID: 1}, {ID: 2}}
	err = loadRelationships(context.Background(), rec, table, &categories, []string{"Products"})
	if !errors.Is(err, errStop) {
		t.Fatalf("loadRelationships() error = %v", err)
	}

	want := "SELECT " + productColumns + " FROM products WHERE category_id = ANY($1) ORDER BY id"
	if len(rec.sql) != 1 || rec.sql[0] != want {
		t.Fatalf("recorded %v, want %s", rec.sql, want)
	}
	for _, c := range categories {
		if c.Products == nil {
			t.Errorf("category %d: Products should be reset to an empty slice", c.ID)
		}
	}
}

func TestLoadRelationships_ManyToMany(t *testing.T) {
	table, err := registry.GetOrRegister(testProduct{})
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	rec := &recorder{}
	products := []testProduct{{ID: 10}, {ID: 11}}
	err = loadRelationships(context.Background(), rec, table, &products, []string{"Discounts"})
	if !errors.Is(err, errStop) {
		t.Fatalf("loadRelationships() error = %v", err)
	}

	want := "SELECT products_discounts.product_id, discounts.id, discounts.code FROM discounts " +
		"INNER JOIN products_discounts ON products_discounts.discount_id = discounts.id " +
		"WHERE products_discounts.product_id = ANY($1) ORDER BY products_discounts.id"
	if len(rec.sql) != 1 || rec.sql[0] != want {
		t.Fatalf("recorded %v, want %s", rec.sql, want)
	}
}

func TestLoadRelationships_UnknownField(t *testing.T) {
	table, err := registry.GetOrRegister(testProduct{})
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	products := []testProduct{{ID: 1}}
	err = loadRelationships(context.Background(), &recorder{}, table, &products, []string{"Comments"})
	if err == nil {
		t.Fatal("expected error for unknown relationship")
	}
}

func TestLoader_Assign(t *testing.T) {
	table, err := registry.GetOrRegister(testProduct{})
	if err != nil {
		t.Fatalf("GetOrRegister() error = %v", err)
	}

	products := []testProduct{{ID: 1}, {ID: 2}}
	results := reflect.ValueOf(&products).Elem()

	belongs := loader{source: table, rel: table.GetRelationship("Category"), results: results}
	belongs.assign(0, reflect.ValueOf(&testCategory{ID: 3, Title: "Kitchen"}))
	if products[0].Category == nil || products[0].Category.Title != "Kitchen" {
		t.Errorf("Category = %+v", products[0].Category)
	}
	if products[1].Category != nil {
		t.Errorf("second product should be untouched")
	}

	many := loader{source: table, rel: table.GetRelationship("Discounts"), results: results}
	many.resetSlices()
	many.assign(1, reflect.ValueOf(&testDiscount{ID: 1, Code: "A"}))
	many.assign(1, reflect.ValueOf(&testDiscount{ID: 2, Code: "B"}))
	if len(products[0].Discounts) != 0 || products[0].Discounts == nil {
		t.Errorf("first product discounts = %#v", products[0].Discounts)
	}
	if len(products[1].Discounts) != 2 || products[1].Discounts[1].Code != "B" {
		t.Errorf("second product discounts = %#v", products[1].Discounts)
	}
}

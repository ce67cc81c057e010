package store

import (
	"context"
	"fmt"

	"github.com/marshallshelly/storefront/pkg/builder"
	"github.com/marshallshelly/storefront/pkg/models"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/marshallshelly/storefront/pkg/schema"
)

type CategoryStore struct {
	*Repository[models.Category]
}

// SetTopProduct points the category at a featured product; nil clears it.
func (c *CategoryStore) SetTopProduct(ctx context.Context, categoryID int64, productID *int64) (*models.Category, error) {
	var value any
	if productID != nil {
		value = *productID
	}
	return c.Update(ctx, categoryID, map[string]any{"top_product_id": value})
}

// Products returns the products of a category.
func (c *CategoryStore) Products(ctx context.Context, categoryID int64) ([]models.Product, error) {
	return c.s.Products.List(ctx, ListOptions{Where: []builder.Condition{builder.Eq("category_id", categoryID)}})
}

type DiscountStore struct {
	*Repository[models.Discount]
}

type ProductStore struct {
	*Repository[models.Product]
}

// BySlug returns the first product with the given slug.
func (p *ProductStore) BySlug(ctx context.Context, slug string) (*models.Product, error) {
	return builder.Select[models.Product](p.s.q).
		Where(builder.Eq(builder.Col[models.Product]("Slug"), slug)).
		OrderByAsc("id").
		First(ctx)
}

// WithRelations returns a product with its category, discounts and
// comments loaded.
func (p *ProductStore) WithRelations(ctx context.Context, productID int64) (*models.Product, error) {
	return builder.Select[models.Product](p.s.q).
		Where(builder.Eq("id", productID)).
		Preload("Category", "Discounts", "Comments").
		First(ctx)
}

func (p *ProductStore) discountLink() (*schema.RelationshipMetadata, error) {
	rel := p.table.GetRelationship("Discounts")
	if rel == nil || rel.JoinTable == nil {
		return nil, fmt.Errorf("%s has no discounts relationship", p.table.Name)
	}
	return rel, nil
}

// AddDiscount links a discount to a product. Linking the same pair twice
// is a no-op.
func (p *ProductStore) AddDiscount(ctx context.Context, productID, discountID int64) error {
	rel, err := p.discountLink()
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT (%s, %s) DO NOTHING",
		schema.QuoteIdent(*rel.JoinTable),
		schema.QuoteIdent(rel.ForeignKey), schema.QuoteIdent(rel.TargetKey),
		schema.QuoteIdent(rel.ForeignKey), schema.QuoteIdent(rel.TargetKey))
	if _, err := p.s.q.Exec(ctx, sql, productID, discountID); err != nil {
		return fmt.Errorf("failed to link discount %d to product %d: %w", discountID, productID, err)
	}
	return nil
}

// RemoveDiscount unlinks a discount from a product. It returns
// runtime.ErrNotFound when the pair was not linked.
func (p *ProductStore) RemoveDiscount(ctx context.Context, productID, discountID int64) error {
	rel, err := p.discountLink()
	if err != nil {
		return err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2",
		schema.QuoteIdent(*rel.JoinTable), schema.QuoteIdent(rel.ForeignKey), schema.QuoteIdent(rel.TargetKey))
	n, err := p.s.q.Exec(ctx, sql, productID, discountID)
	if err != nil {
		return fmt.Errorf("failed to unlink discount %d from product %d: %w", discountID, productID, err)
	}
	if n == 0 {
		return fmt.Errorf("discount %d on product %d: %w", discountID, productID, runtime.ErrNotFound)
	}
	return nil
}

// Discounts returns the discounts linked to a product, in link order.
func (p *ProductStore) Discounts(ctx context.Context, productID int64) ([]models.Discount, error) {
	rel, err := p.discountLink()
	if err != nil {
		return nil, err
	}
	join := *rel.JoinTable
	return builder.Select[models.Discount](p.s.q).
		InnerJoin(join, fmt.Sprintf("%s.%s = discounts.id", schema.QuoteIdent(join), schema.QuoteIdent(rel.TargetKey))).
		Where(builder.Eq(join+"."+rel.ForeignKey, productID)).
		OrderByAsc(join + ".id").
		All(ctx)
}

type CommentStore struct {
	*Repository[models.Comment]
}

// SetStatus moves a comment to any valid status.
func (c *CommentStore) SetStatus(ctx context.Context, commentID int64, status models.CommentStatus) (*models.Comment, error) {
	if !status.Valid() {
		return nil, invalidStatus(c.table.Name, string(status), "W A UA")
	}
	return c.Update(ctx, commentID, map[string]any{"status": status})
}

// ByProduct returns a product's comments, oldest first. A non-empty status
// filters on it.
func (c *CommentStore) ByProduct(ctx context.Context, productID int64, status models.CommentStatus) ([]models.Comment, error) {
	where := []builder.Condition{builder.Eq("product_id", productID)}
	if status != "" {
		where = append(where, builder.Eq("status", status))
	}
	return c.List(ctx, ListOptions{Where: where})
}

func invalidStatus(model, value, allowed string) error {
	return &runtime.ValidationError{
		Model: model,
		Fields: []runtime.FieldError{{
			Field:   "status",
			Rule:    "oneof",
			Message: fmt.Sprintf("must be one of %s, got %q", allowed, value),
		}},
	}
}

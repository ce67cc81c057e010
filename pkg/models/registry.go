package models

import "github.com/marshallshelly/storefront/pkg/registry"

// All lists every model in dependency order. The products_discounts join
// table is synthesised when Product is registered.
func All() []any {
	return []any{
		Category{},
		Discount{},
		Product{},
		Comment{},
		Customer{},
		Address{},
		Order{},
		OrderItem{},
		Cart{},
		CartItem{},
	}
}

// RegisterAll registers every model with reg, or with the default registry
// when reg is nil.
func RegisterAll(reg *registry.Registry) error {
	if reg == nil {
		reg = registry.Default()
	}
	for _, model := range All() {
		if err := reg.Register(model); err != nil {
			return err
		}
	}
	return nil
}

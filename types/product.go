package types

import "time"

// Product represents an item sold in the coin shop.
//
// A product tracks availability in exactly one of two ways: a flat Stock
// counter, or a per-size Sizes map. Setting one clears the other. A product
// with neither is untracked and always available.
type Product struct {
	// ID is the unique identifier of the product.
	ID int `json:"id" db:"id"`

	// Name is the display name of the product.
	Name string `json:"name" db:"name"`

	// Price is the product price in coins. Never negative.
	Price int `json:"price" db:"price"`

	// Description is the product description shown in the shop.
	Description string `json:"description" db:"description"`

	// Image is the public URL of the product image, if one was uploaded.
	Image string `json:"image,omitempty" db:"image"`

	// Stock is the remaining quantity for flat-stock products.
	// nil means stock is not tracked for this product.
	Stock *int `json:"stock" db:"stock"`

	// Sizes maps a size label (S, M, L, ...) to its remaining quantity.
	// Empty for products that do not track sizes.
	Sizes map[string]int `json:"sizes,omitempty"`

	// IsNew marks the product as a new arrival in the shop.
	IsNew bool `json:"is_new" db:"is_new"`

	// CreatedAt is the timestamp at which the product was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the product.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Sized reports whether the product tracks per-size quantities.
func (p Product) Sized() bool {
	return len(p.Sizes) > 0
}

// Tracked reports whether the product tracks availability at all.
func (p Product) Tracked() bool {
	return p.Sized() || p.Stock != nil
}

package types

import "time"

// OrderStatus names a state in the order lifecycle.
//
// Pending is the initial state; Completed and Cancelled are terminal.
// The only valid transitions are pending -> completed and
// pending -> cancelled, the latter refunding the order price.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Order is the historical record of a shop purchase.
//
// User name, product name, size and price are denormalized snapshots taken
// at purchase time, so later edits to the user or the product do not change
// what the order says. Everything but Status is immutable.
type Order struct {
	// ID is the unique identifier of the order.
	ID int `json:"id" db:"id"`

	// UserID references the purchasing user.
	UserID int `json:"user_id" db:"user_id"`

	// UserName is the user's display name at purchase time.
	UserName string `json:"user_name" db:"user_name"`

	// ProductID references the purchased product.
	ProductID int `json:"product_id" db:"product_id"`

	// ProductName is the product name at purchase time.
	ProductName string `json:"product_name" db:"product_name"`

	// Size is the chosen size for sized products, empty otherwise.
	Size string `json:"size,omitempty" db:"size"`

	// Price is the price paid, in coins, at purchase time. A cancellation
	// refunds exactly this amount regardless of the product's current price.
	Price int `json:"price" db:"price"`

	// Status is the current lifecycle state of the order.
	Status OrderStatus `json:"status" db:"status"`

	// CreatedAt is the timestamp at which the order was placed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

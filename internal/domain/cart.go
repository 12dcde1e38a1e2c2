package domain

import (
	"fmt"
	"time"
)

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is keyed by a composite of product id and variant, so repeated
// adds of the same composite merge into a quantity increment instead of a
// duplicate line.
type CartItem struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Variant   string    `json:"variant,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// CartItemID builds the deterministic composite id for a (product, variant)
// pair. Items without a variant use the bare product id.
func CartItemID(productID, variant string) string {
	if variant == "" {
		return productID
	}
	return fmt.Sprintf("%s::%s", productID, variant)
}

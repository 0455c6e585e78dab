package models

import "gorm.io/gorm"

// CartItem is a single line in a cart: a product reference plus a quantity.
// A cart holds at most one line per product; repeated adds merge quantities.
type CartItem struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	CartID    string `json:"-" gorm:"type:varchar(36);uniqueIndex:idx_cart_product"`
	ProductID string `json:"product_id" gorm:"type:varchar(36);uniqueIndex:idx_cart_product" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// Cart is the per-user collection of pending purchase intents. There is one
// cart per user; it is created lazily on first add and emptied, never
// deleted, when an order is placed. Version guards read-modify-write cycles
// against concurrent writers.
type Cart struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	UserID     string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36)" validate:"required"`
	Items      []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Version    int64      `json:"-"`
	gorm.Model            // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// FindItem returns the line item for the given product, or nil.
func (c *Cart) FindItem(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// CartItemView is a cart line with its product record resolved for display.
type CartItemView struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// CartView is the read model returned to clients: the cart with every
// product reference expanded. An empty cart serializes with an empty items
// list rather than null.
type CartView struct {
	ID     string         `json:"id,omitempty"`
	UserID string         `json:"user_id"`
	Items  []CartItemView `json:"items"`
}

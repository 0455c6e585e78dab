package models

import "time"

// Order statuses. The progression is forward-only:
// Pending -> Completed -> Shipped.
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusShipped   = "Shipped"
)

var orderStatusRank = map[string]int{
	OrderStatusPending:   0,
	OrderStatusCompleted: 1,
	OrderStatusShipped:   2,
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	_, ok := orderStatusRank[s]
	return ok
}

// CanTransition reports whether an order may move from one status to the
// next. Only single forward steps are allowed.
func CanTransition(from, to string) bool {
	f, okF := orderStatusRank[from]
	t, okT := orderStatusRank[to]
	return okF && okT && t == f+1
}

// OrderItem is a single item within an order. Price is the unit price at
// the time the order was placed; it is never recomputed afterwards.
type OrderItem struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	OrderID   string  `json:"-" gorm:"type:varchar(36);index"`
	ProductID string  `json:"product_id" gorm:"type:varchar(36)"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is the immutable record of a placed order. Total is the sum of
// price times quantity frozen at creation time; later catalog price changes
// must not alter it.
type Order struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string      `json:"user_id" gorm:"type:varchar(36);index"`
	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Total     float64     `json:"total"`
	Status    string      `json:"status" gorm:"type:varchar(20);default:Pending"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItemView is an order line with its product record resolved. Price
// remains the frozen unit price from order time, not the live one.
type OrderItemView struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderView is the read model for order listings.
type OrderView struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Items     []OrderItemView `json:"items"`
	Total     float64         `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

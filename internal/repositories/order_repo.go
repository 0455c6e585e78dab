package repositories

import (
	"gerai/internal/models"
)

// OrderRepository defines the interface for order data access.
//
// CreateFromCart persists the order and empties the given cart as a single
// unit: either both writes land or neither does. The cart's Version is
// re-checked as part of the write, so a cart mutated concurrently surfaces
// ErrVersionConflict and no order is created.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByUser(userID string) ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	CreateFromCart(order *models.Order, cart *models.Cart) error
	UpdateStatus(id string, status string) error
}

package repositories

import (
	"gerai/internal/models"
)

// CartRepository defines the interface for cart data access.
//
// Save performs an optimistic-concurrency write: the cart's Version must
// match the stored one, the write bumps it, and ErrVersionConflict is
// returned when a concurrent writer got there first. Callers retry from a
// fresh GetByUserID.
type CartRepository interface {
	GetByUserID(userID string) (*models.Cart, error)
	Create(cart *models.Cart) error
	Save(cart *models.Cart) error
}

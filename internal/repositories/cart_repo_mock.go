package repositories

import (
	"fmt"
	"sync"

	"gerai/internal/models"

	"github.com/google/uuid"
)

// MockCartRepository is an in-memory implementation of CartRepository.
type MockCartRepository struct {
	carts map[string]models.Cart // keyed by user ID
	mu    sync.RWMutex
}

// NewMockCartRepository creates a new instance of MockCartRepository.
func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{
		carts: make(map[string]models.Cart),
	}
}

// GetByUserID returns a user's cart.
func (r *MockCartRepository) GetByUserID(userID string) (*models.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[userID]
	if !ok {
		return nil, fmt.Errorf("cart for user %s: %w", userID, ErrCartNotFound)
	}
	cart.Items = append([]models.CartItem(nil), cart.Items...)
	return &cart, nil
}

// Create adds a new cart. A user already holding a cart gets ErrCartExists
// so a concurrent first-add cannot overwrite their items.
func (r *MockCartRepository) Create(cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.carts[cart.UserID]; ok {
		return fmt.Errorf("cart for user %s: %w", cart.UserID, ErrCartExists)
	}
	if cart.ID == "" {
		cart.ID = uuid.New().String()
	}
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	r.carts[cart.UserID] = *cart
	return nil
}

// Save rewrites the cart's items under an optimistic version check.
func (r *MockCartRepository) Save(cart *models.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveLocked(cart)
}

// saveLocked is Save without the lock, shared with the in-memory order
// repository so order persist and cart clear happen under one critical
// section.
func (r *MockCartRepository) saveLocked(cart *models.Cart) error {
	stored, ok := r.carts[cart.UserID]
	if !ok {
		return fmt.Errorf("cart for user %s: %w", cart.UserID, ErrCartNotFound)
	}
	if stored.Version != cart.Version {
		return fmt.Errorf("cart %s at version %d: %w", cart.ID, cart.Version, ErrVersionConflict)
	}
	cart.Version++
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	copied := *cart
	copied.Items = append([]models.CartItem(nil), cart.Items...)
	r.carts[cart.UserID] = copied
	return nil
}

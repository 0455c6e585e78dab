package repositories

import "errors"

// Sentinel errors shared by every repository implementation. Services and
// handlers match on these with errors.Is.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrVersionConflict signals that a cart write lost a race with a
	// concurrent writer and should be retried from a fresh read.
	ErrVersionConflict = errors.New("cart version conflict")

	// ErrCartExists signals that Create hit the one-cart-per-user
	// constraint; the caller re-reads and merges instead.
	ErrCartExists = errors.New("cart already exists")

	// ErrDuplicateEmail signals that an insert hit the unique email
	// constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)

package services

import (
	"errors"
	"fmt"
	"log"

	"gerai/internal/models"
	"gerai/internal/repositories"
)

// cartSaveRetries bounds how often a read-modify-write cycle is retried
// after losing a version race.
const cartSaveRetries = 3

// CartService handles business logic for the per-user shopping cart.
type CartService struct {
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(cartRepo repositories.CartRepository, productRepo repositories.ProductRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// GetCart returns the user's cart with product details resolved. A user
// without a cart gets an empty view, not an error.
func (s *CartService) GetCart(userID string) (*models.CartView, error) {
	cart, err := s.cartRepo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrCartNotFound) {
			return &models.CartView{UserID: userID, Items: []models.CartItemView{}}, nil
		}
		return nil, err
	}
	return s.resolve(cart), nil
}

// AddItem adds quantity of a product to the user's cart, creating the cart
// lazily and merging quantities when the product is already present. The
// write is retried on a version conflict with a concurrent cart mutation.
func (s *CartService) AddItem(userID, productID string, quantity int) (*models.CartView, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}

	// Stock is deliberately not checked here; it is validated once, at
	// order creation.
	if _, err := s.productRepo.GetByID(productID); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < cartSaveRetries; attempt++ {
		cart, err := s.cartRepo.GetByUserID(userID)
		if err != nil {
			if !errors.Is(err, repositories.ErrCartNotFound) {
				return nil, err
			}
			cart = &models.Cart{
				UserID: userID,
				Items:  []models.CartItem{{ProductID: productID, Quantity: quantity}},
			}
			if err := s.cartRepo.Create(cart); err != nil {
				lastErr = err
				continue // another request may have created the cart first
			}
			return s.resolve(cart), nil
		}

		if item := cart.FindItem(productID); item != nil {
			item.Quantity += quantity
		} else {
			cart.Items = append(cart.Items, models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity})
		}

		if err := s.cartRepo.Save(cart); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return s.resolve(cart), nil
	}
	return nil, fmt.Errorf("failed to add item to cart for user %s: %w", userID, lastErr)
}

// RemoveItem removes a product's line item from the user's cart. A product
// that is not in the cart is a no-op; a user without a cart is an error.
func (s *CartService) RemoveItem(userID, productID string) (*models.CartView, error) {
	var lastErr error
	for attempt := 0; attempt < cartSaveRetries; attempt++ {
		cart, err := s.cartRepo.GetByUserID(userID)
		if err != nil {
			return nil, err
		}

		if cart.FindItem(productID) == nil {
			return s.resolve(cart), nil
		}

		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept

		if err := s.cartRepo.Save(cart); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return s.resolve(cart), nil
	}
	return nil, fmt.Errorf("failed to remove item from cart for user %s: %w", userID, lastErr)
}

// resolve expands each line item's product reference into the full product
// record. Lines whose product disappeared from the catalog are skipped in
// the view; they stay in the stored cart.
func (s *CartService) resolve(cart *models.Cart) *models.CartView {
	view := &models.CartView{
		ID:     cart.ID,
		UserID: cart.UserID,
		Items:  make([]models.CartItemView, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			log.Printf("Skipping cart item with unresolved product %s: %v", item.ProductID, err)
			continue
		}
		view.Items = append(view.Items, models.CartItemView{
			Product:  *product,
			Quantity: item.Quantity,
		})
	}
	return view
}

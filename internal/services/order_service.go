package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gerai/internal/models"
	"gerai/internal/repositories"

	"github.com/google/uuid"
)

// EventPublisher publishes domain events to a message broker. The RabbitMQ
// client satisfies it; tests substitute a mock.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderService handles business logic related to orders: placing an order
// from the user's cart and reading orders back.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	cartRepo    repositories.CartRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService. publisher may be nil, in
// which case order events are not emitted.
func NewOrderService(orderRepo repositories.OrderRepository, cartRepo repositories.CartRepository, productRepo repositories.ProductRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		publisher:   publisher,
	}
}

// CreateOrder turns the user's cart into an order: line items are priced at
// the current catalog price, the total is frozen into the order, and the
// cart is emptied in the same transaction the order is written in. A cart
// mutated concurrently makes the whole attempt roll back and retry from a
// fresh read.
func (s *OrderService) CreateOrder(userID string) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < cartSaveRetries; attempt++ {
		cart, err := s.cartRepo.GetByUserID(userID)
		if err != nil {
			if errors.Is(err, repositories.ErrCartNotFound) {
				return nil, ErrEmptyCart
			}
			return nil, err
		}
		if len(cart.Items) == 0 {
			return nil, ErrEmptyCart
		}

		var totalAmount float64
		orderItems := make([]models.OrderItem, 0, len(cart.Items))
		for _, item := range cart.Items {
			product, err := s.productRepo.GetByID(item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("cart references product %s: %w", item.ProductID, err)
			}
			if product.Stock < item.Quantity {
				return nil, fmt.Errorf("product %s (requested: %d, available: %d): %w",
					product.Name, item.Quantity, product.Stock, ErrInsufficientStock)
			}

			// Price at the time of order creation; never recomputed.
			orderItems = append(orderItems, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     product.Price,
			})
			totalAmount += product.Price * float64(item.Quantity)
		}

		newOrder := &models.Order{
			ID:     uuid.New().String(),
			UserID: userID,
			Items:  orderItems,
			Total:  totalAmount,
			Status: models.OrderStatusPending,
		}

		if err := s.orderRepo.CreateFromCart(newOrder, cart); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to create order: %w", err)
		}

		s.publishOrderCreated(newOrder)
		return newOrder, nil
	}
	return nil, fmt.Errorf("failed to create order for user %s: %w", userID, lastErr)
}

// publishOrderCreated emits a best-effort order.created event. A broker
// failure is logged, not surfaced: the order is already committed.
func (s *OrderService) publishOrderCreated(order *models.Order) {
	if s.publisher == nil {
		log.Println("Event publisher is not initialized. Skipping message publication.")
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"orderID": order.ID,
		"userID":  order.UserID,
		"status":  order.Status,
		"total":   order.Total,
	})
	if err != nil {
		log.Printf("Failed to marshal order to JSON: %v", err)
		return
	}
	if err := s.publisher.Publish("order", "order.created", body); err != nil {
		log.Printf("Warning: Failed to publish order created event for order %s: %v", order.ID, err)
	} else {
		log.Printf("Successfully published order created event for order %s", order.ID)
	}
}

// ListOrders retrieves all orders belonging to a user, with product details
// resolved for display.
func (s *OrderService) ListOrders(userID string) ([]models.OrderView, error) {
	orders, err := s.orderRepo.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.resolveOrders(orders), nil
}

// GetAllOrders retrieves every order in the store, resolved for display.
// Admin reporting only.
func (s *OrderService) GetAllOrders() ([]models.OrderView, error) {
	orders, err := s.orderRepo.GetAll()
	if err != nil {
		return nil, err
	}
	return s.resolveOrders(orders), nil
}

// UpdateOrderStatus moves an order one step along
// Pending -> Completed -> Shipped.
func (s *OrderService) UpdateOrderStatus(id string, status string) error {
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
	}

	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return err
	}
	if !models.CanTransition(order.Status, status) {
		return fmt.Errorf("cannot move order %s from %s to %s: %w", id, order.Status, status, ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateStatus(id, status); err != nil {
		return fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	return nil
}

// resolveOrders expands product references in order line items. The frozen
// unit price from order time is kept alongside the live product record.
func (s *OrderService) resolveOrders(orders []models.Order) []models.OrderView {
	views := make([]models.OrderView, 0, len(orders))
	for _, order := range orders {
		view := models.OrderView{
			ID:        order.ID,
			UserID:    order.UserID,
			Items:     make([]models.OrderItemView, 0, len(order.Items)),
			Total:     order.Total,
			Status:    order.Status,
			CreatedAt: order.CreatedAt,
		}
		for _, item := range order.Items {
			itemView := models.OrderItemView{
				Quantity: item.Quantity,
				Price:    item.Price,
			}
			if product, err := s.productRepo.GetByID(item.ProductID); err == nil {
				itemView.Product = *product
			} else {
				// Product vanished from the catalog; keep the reference.
				itemView.Product = models.Product{ID: item.ProductID}
			}
			view.Items = append(view.Items, itemView)
		}
		views = append(views, view)
	}
	return views
}

package handlers

import (
	"errors"
	"fmt"
	"log"

	"gerai/internal/middleware"
	"gerai/internal/models"
	"gerai/internal/repositories"
	"gerai/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles administrative reporting endpoints.
type AdminHandler struct {
	orderService   *services.OrderService
	productService *services.ProductService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orderService *services.OrderService, productService *services.ProductService) *AdminHandler {
	return &AdminHandler{
		orderService:   orderService,
		productService: productService,
	}
}

// RegisterRoutes registers admin routes: the order report is Admin-only,
// the product report allows Manager as well.
func (h *AdminHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	adminRoutes := router.Group("/admin", auth)
	adminRoutes.Get("/orders", middleware.RoleRequired(models.RoleAdmin), h.HandleGetAllOrders)
	adminRoutes.Get("/products", middleware.RoleRequired(models.RoleAdmin, models.RoleManager), h.HandleGetAllProducts)
	adminRoutes.Patch("/orders/:id/status", middleware.RoleRequired(models.RoleAdmin), h.HandleUpdateOrderStatus)
}

// HandleGetAllOrders lists every order in the store.
func (h *AdminHandler) HandleGetAllOrders(c *fiber.Ctx) error {
	orders, err := h.orderService.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetAllProducts lists every product in the catalog.
func (h *AdminHandler) HandleGetAllProducts(c *fiber.Ctx) error {
	products, err := h.productService.GetAllProducts()
	if err != nil {
		log.Printf("Error getting all products: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleUpdateOrderStatus moves an order one step along the forward-only
// status progression.
func (h *AdminHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status string `json:"status"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		log.Printf("Error parsing request body for status update: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}

	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	err := h.orderService.UpdateOrderStatus(orderID, updateData.Status)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order not found",
			})
		}
		if errors.Is(err, services.ErrInvalidStatus) || errors.Is(err, services.ErrInvalidTransition) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": fmt.Sprintf("Order update failed: %v", err.Error()),
			})
		}
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update order status",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, updateData.Status),
	})
}

package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"gerai/internal/handlers"
	"gerai/internal/middleware"
	"gerai/internal/models"
	"gerai/internal/repositories"
	"gerai/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbCounter int64

// setupApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services wired the same way main does it.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	// Configure Viper for testing
	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	// Each test gets its own shared-cache in-memory database.
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to connect to in-memory database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	)
	require.NoError(t, err, "failed to auto-migrate database")

	// Initialize Repositories
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	cartRepo := repositories.NewGORMCartRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	// Initialize Services
	authService := services.NewAuthService(userRepo, jwtSecret, 0)
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	orderService := services.NewOrderService(orderRepo, cartRepo, productRepo, nil) // nil publisher

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	adminHandler := handlers.NewAdminHandler(orderService, productService)

	app := fiber.New()
	auth := middleware.AuthRequired(authService)

	api := app.Group("/api")
	authHandler.RegisterRoutes(api)
	productHandler.RegisterRoutes(api, auth)
	cartHandler.RegisterRoutes(api, auth)
	orderHandler.RegisterRoutes(api, auth)
	adminHandler.RegisterRoutes(api, auth)

	return app
}

// doJSON performs a JSON request against the test app, with an optional
// bearer token, and returns the response.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	return resp
}

// decodeBody decodes a JSON response body into a generic map.
func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	return out
}

// register creates a user via the API and returns their token.
func register(t *testing.T, app *fiber.App, name, email, role string) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// createProduct creates a product via the API with the given token and
// returns its ID.
func createProduct(t *testing.T, app *fiber.App, token, name string, price float64, stock int) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/products", token, map[string]interface{}{
		"name":  name,
		"price": price,
		"stock": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app := setupApp(t)

	// Registration returns a usable token straight away
	token := register(t, app, "Test User", "test@example.com", "")
	assert.NotEmpty(t, token)

	// Duplicate email is rejected with a conflict
	resp := doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Test User Again",
		"email":    "test@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login with the right credentials
	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "test@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	loginBody := decodeBody(t, resp)
	assert.NotEmpty(t, loginBody["token"])

	// Wrong password and unknown email produce the same generic response
	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "test@example.com",
		"password": "wrongpassword",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	wrongPassword := decodeBody(t, resp)

	resp = doJSON(t, app, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	unknownEmail := decodeBody(t, resp)
	assert.Equal(t, wrongPassword["message"], unknownEmail["message"])

	// Malformed registration is a validation error
	resp = doJSON(t, app, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "X",
		"email":    "not-an-email",
		"password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestProductEndpointsAndRoles(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	managerToken := register(t, app, "Manager", "manager@example.com", models.RoleManager)
	customerToken := register(t, app, "Customer", "customer@example.com", "")

	// Mutations require a token at all
	resp := doJSON(t, app, http.MethodPost, "/api/products", "", map[string]interface{}{
		"name": "No Auth", "price": 1.0, "stock": 1,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A customer may not create products
	resp = doJSON(t, app, http.MethodPost, "/api/products", customerToken, map[string]interface{}{
		"name": "Forbidden", "price": 1.0, "stock": 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Admin and manager may
	productID := createProduct(t, app, adminToken, "Test Laptop", 1000.00, 5)
	createProduct(t, app, managerToken, "Test Monitor", 200.00, 10)

	// Public listing and lookup
	resp = doJSON(t, app, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var products []models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	resp.Body.Close()
	assert.Len(t, products, 2)

	resp = doJSON(t, app, http.MethodGet, "/api/products/"+productID, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	productBody := decodeBody(t, resp)
	assert.Equal(t, "Test Laptop", productBody["name"])

	resp = doJSON(t, app, http.MethodGet, "/api/products/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Partial update: only the price changes
	resp = doJSON(t, app, http.MethodPut, "/api/products/"+productID, managerToken, map[string]interface{}{
		"price": 1100.00,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody(t, resp)
	assert.Equal(t, 1100.00, updated["price"])
	assert.Equal(t, "Test Laptop", updated["name"])

	// Delete is Admin-only
	resp = doJSON(t, app, http.MethodDelete, "/api/products/"+productID, managerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, "/api/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/products/"+productID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCartFlow(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	customerToken := register(t, app, "Customer", "customer@example.com", "")
	productID := createProduct(t, app, adminToken, "Test Keyboard", 75.00, 25)

	// Adding an unknown product fails
	resp := doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": "does-not-exist", "quantity": 1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Repeated adds merge into a single line item
	resp = doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productID, "quantity": 2,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productID, "quantity": 3,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var cart models.CartView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, productID, cart.Items[0].Product.ID)

	// Removing something that is not in the cart is a no-op
	resp = doJSON(t, app, http.MethodPost, "/api/cart/remove", customerToken, map[string]interface{}{
		"productId": "never-added",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	// Removing the product empties the cart
	resp = doJSON(t, app, http.MethodPost, "/api/cart/remove", customerToken, map[string]interface{}{
		"productId": productID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	assert.Empty(t, cart.Items)

	// A user who never touched their cart has nothing to remove from
	freshToken := register(t, app, "Fresh", "fresh@example.com", "")
	resp = doJSON(t, app, http.MethodPost, "/api/cart/remove", freshToken, map[string]interface{}{
		"productId": productID,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// ...but still sees an empty cart on read
	resp = doJSON(t, app, http.MethodGet, "/api/cart", freshToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	assert.Empty(t, cart.Items)
}

func TestOrderWorkflow(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	customerToken := register(t, app, "Customer", "customer@example.com", "")

	productA := createProduct(t, app, adminToken, "Product A", 10.00, 100)
	productB := createProduct(t, app, adminToken, "Product B", 5.00, 100)

	// Ordering with no cart fails and creates nothing
	resp := doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Build the cart: 2 x A + 1 x B
	resp = doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productA, "quantity": 2,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productB, "quantity": 1,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Place the order: total = 2*10 + 1*5
	resp = doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()
	assert.Equal(t, 25.0, order.Total)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Len(t, order.Items, 2)

	// The cart is empty immediately afterwards
	resp = doJSON(t, app, http.MethodGet, "/api/cart", customerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var cart models.CartView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cart))
	resp.Body.Close()
	assert.Empty(t, cart.Items)

	// A second order attempt fails: the cart is empty now
	resp = doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Changing the catalog price afterwards must not change the stored
	// total or the frozen unit prices
	resp = doJSON(t, app, http.MethodPut, "/api/products/"+productA, adminToken, map[string]interface{}{
		"price": 999.00,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.OrderView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	resp.Body.Close()
	require.Len(t, orders, 1)
	assert.Equal(t, 25.0, orders[0].Total)
	for _, item := range orders[0].Items {
		if item.Product.ID == productA {
			assert.Equal(t, 10.0, item.Price, "frozen unit price")
			assert.Equal(t, 999.0, item.Product.Price, "live catalog price")
		}
	}
}

func TestOrderInsufficientStock(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	customerToken := register(t, app, "Customer", "customer@example.com", "")
	productID := createProduct(t, app, adminToken, "Scarce Item", 10.00, 2)

	// The cart itself accepts more than the stock on hand
	resp := doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productID, "quantity": 5,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Ordering is where stock is enforced
	resp = doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "insufficient stock")
}

func TestOrderWithDiscontinuedProduct(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	customerToken := register(t, app, "Customer", "customer@example.com", "")
	productID := createProduct(t, app, adminToken, "Short Lived", 15.00, 10)

	resp := doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productID, "quantity": 1,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The product disappears from the catalog while it is still in the cart
	resp = doJSON(t, app, http.MethodDelete, "/api/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Ordering the stale cart is the client's problem, not a server error
	resp = doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["message"], "no longer available")
}

func TestAdminEndpoints(t *testing.T) {
	app := setupApp(t)

	adminToken := register(t, app, "Admin", "admin@example.com", models.RoleAdmin)
	managerToken := register(t, app, "Manager", "manager@example.com", models.RoleManager)
	customerToken := register(t, app, "Customer", "customer@example.com", "")

	productID := createProduct(t, app, adminToken, "Reported Item", 30.00, 10)
	resp := doJSON(t, app, http.MethodPost, "/api/cart/add", customerToken, map[string]interface{}{
		"productId": productID, "quantity": 1,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodPost, "/api/orders", customerToken, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()

	// Order report is Admin-only
	resp = doJSON(t, app, http.MethodGet, "/api/admin/orders", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodGet, "/api/admin/orders", managerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/admin/orders", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var allOrders []models.OrderView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&allOrders))
	resp.Body.Close()
	assert.Len(t, allOrders, 1)

	// Product report allows Manager too
	resp = doJSON(t, app, http.MethodGet, "/api/admin/products", managerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, app, http.MethodGet, "/api/admin/products", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Status moves forward one step at a time
	resp = doJSON(t, app, http.MethodPatch, "/api/admin/orders/"+order.ID+"/status", adminToken, map[string]string{
		"status": models.OrderStatusCompleted,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/admin/orders/"+order.ID+"/status", adminToken, map[string]string{
		"status": models.OrderStatusPending,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/admin/orders/no-such-order/status", adminToken, map[string]string{
		"status": models.OrderStatusCompleted,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gerai/internal/handlers"
	"gerai/internal/middleware"
	"gerai/internal/models"
	"gerai/internal/repositories"
	"gerai/internal/services"
	"gerai/pkg/rabbitmq"

	"github.com/spf13/viper"
)

// App bundles everything main wires together so tests can build the same
// application without starting a listener.
type App struct {
	Fiber       *fiber.App
	AuthService *services.AuthService
	MQ          *rabbitmq.Client
}

// NewApp reads configuration and assembles the HTTP application: store,
// repositories, services, handlers and routes. With no DATABASE_DSN the
// server runs on in-memory repositories; with no RABBITMQ_URL order events
// are not published.
func NewApp() (*App, error) {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("JWT_SECRET", "change_me_in_production")
	viper.SetDefault("JWT_TTL", "1h")
	viper.SetDefault("DATABASE_DSN", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv() // Load environment variables

	// --- Repositories ---
	var (
		userRepo    repositories.UserRepository
		productRepo repositories.ProductRepository
		cartRepo    repositories.CartRepository
		orderRepo   repositories.OrderRepository
	)

	if dsn := viper.GetString("DATABASE_DSN"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(
			&models.User{},
			&models.Product{},
			&models.Cart{},
			&models.CartItem{},
			&models.Order{},
			&models.OrderItem{},
		); err != nil {
			return nil, err
		}
		userRepo = repositories.NewGORMUserRepository(db)
		productRepo = repositories.NewGORMProductRepository(db)
		cartRepo = repositories.NewGORMCartRepository(db)
		orderRepo = repositories.NewGORMOrderRepository(db)
	} else {
		log.Println("DATABASE_DSN not set, using in-memory repositories")
		mockProducts := repositories.NewMockProductRepository()
		mockCarts := repositories.NewMockCartRepository()
		userRepo = repositories.NewMockUserRepository()
		productRepo = mockProducts
		cartRepo = mockCarts
		orderRepo = repositories.NewMockOrderRepository(mockCarts)
		seedProducts(productRepo)
	}

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	var publisher services.EventPublisher
	if url := viper.GetString("RABBITMQ_URL"); url != "" {
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			return nil, err
		}
		mqClient = client
		publisher = client
	} else {
		log.Println("RABBITMQ_URL not set, order events will not be published")
	}

	// --- Services ---
	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"), viper.GetDuration("JWT_TTL"))
	productService := services.NewProductService(productRepo)
	cartService := services.NewCartService(cartRepo, productRepo)
	orderService := services.NewOrderService(orderRepo, cartRepo, productRepo, publisher)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	cartHandler := handlers.NewCartHandler(cartService)
	orderHandler := handlers.NewOrderHandler(orderService)
	adminHandler := handlers.NewAdminHandler(orderService, productService)

	// --- Fiber App ---
	app := fiber.New()
	app.Use(logger.New()) // Request logger

	auth := middleware.AuthRequired(authService)

	api := app.Group("/api")
	authHandler.RegisterRoutes(api)
	productHandler.RegisterRoutes(api, auth)
	cartHandler.RegisterRoutes(api, auth)
	orderHandler.RegisterRoutes(api, auth)
	adminHandler.RegisterRoutes(api, auth)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &App{
		Fiber:       app,
		AuthService: authService,
		MQ:          mqClient,
	}, nil
}

func main() {
	application, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	if application.MQ != nil {
		defer application.MQ.Close()

		// --- Start RabbitMQ Consumer in a Goroutine ---
		go func() {
			log.Println("Starting RabbitMQ consumer for orders...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received Order Event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := application.MQ.ConsumeOrderEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	appPort := viper.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := application.Fiber.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := application.Fiber.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// seedProducts populates the in-memory product repository with some initial
// data so the API is usable out of the box.
func seedProducts(repo repositories.ProductRepository) {
	products := []models.Product{
		{Name: "Laptop", Category: "Electronics", Description: "High performance laptop", Price: 1200.00, Stock: 10},
		{Name: "Keyboard", Category: "Accessories", Description: "Mechanical keyboard", Price: 75.00, Stock: 25},
		{Name: "Mouse", Category: "Accessories", Description: "Ergonomic wireless mouse", Price: 25.00, Stock: 50},
	}

	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}

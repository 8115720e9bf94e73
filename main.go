package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tenancy-service/internal/config"
	"tenancy-service/internal/db"
	"tenancy-service/internal/handlers"
	"tenancy-service/internal/metrics"
	"tenancy-service/internal/middleware"
	"tenancy-service/internal/models"
	natsClient "tenancy-service/internal/nats"
	"tenancy-service/internal/redis"
	"tenancy-service/internal/repository"
	"tenancy-service/internal/services"
)

func main() {
	// Load configuration
	cfg := config.New()

	logger := newLogger(cfg.App)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	database, err := db.Connect(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	if err := db.MigrateShared(ctx, database); err != nil {
		cancel()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	if err := seedTiers(ctx, database); err != nil {
		cancel()
		log.Fatalf("Failed to seed subscription tiers: %v", err)
	}
	cancel()

	// Redis is optional; without it every admission hits the directory
	var redisClient *redis.Client
	redisClient, err = redis.NewClient(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Tenant gate will run without lookup caching")
		redisClient = nil
	} else {
		log.Println("Connected to Redis successfully")
	}

	// NATS is optional; without it lifecycle events are not published
	var nc *natsClient.Client
	nc, err = natsClient.NewClient(getEnv("NATS_URL", "nats://localhost:4222"))
	if err != nil {
		log.Printf("Warning: Failed to connect to NATS: %v", err)
		log.Println("Tenant lifecycle event publishing will be disabled")
		nc = nil
	} else {
		log.Println("Connected to NATS successfully")
		defer nc.Close()
	}

	// Initialize repositories
	directory := repository.NewTenantDirectory(database)
	usageRepo := repository.NewUsageRepository(database)
	router := db.NewRouter(database)

	// Initialize services
	usageSvc := services.NewUsageService(usageRepo, cfg.Usage, logger)
	usageSvc.Start()
	provisioningSvc := services.NewProvisioningService(
		directory, usageRepo, router,
		redisClient, nc, cfg.Billing, cfg.App.BaseDomain, logger,
	)
	billingSvc := services.NewBillingService(directory, redisClient, nc, logger)

	// Initialize middleware and handlers
	resolver := middleware.NewResolver(cfg.App.BaseDomain, cfg.App.JWTSecret)
	gate := middleware.NewGate(directory, redisClient, cfg.Gate, logger)
	healthHandler := handlers.NewHealthHandler(database, redisClient)
	tenantHandler := handlers.NewTenantHandler(provisioningSvc, billingSvc)
	hotelHandler := handlers.NewHotelHandler(router, usageSvc)

	engine := setupRouter(cfg, logger, resolver, gate, usageSvc, healthHandler, tenantHandler, hotelHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		log.Printf("Starting tenancy-service on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Drain queued usage increments before the process exits
	usageSvc.Stop()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}

	log.Println("Server exited")
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	resolver *middleware.Resolver,
	gate *middleware.Gate,
	usageSvc *services.UsageService,
	healthHandler *handlers.HealthHandler,
	tenantHandler *handlers.TenantHandler,
	hotelHandler *handlers.HotelHandler,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = false
	corsConfig.AllowOriginFunc = func(origin string) bool {
		// Tenant dashboards live on subdomains of the base domain
		return origin == "https://"+cfg.App.BaseDomain ||
			strings.HasSuffix(origin, "."+cfg.App.BaseDomain) ||
			origin == "http://localhost:3000"
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID", "X-Tenant-Slug", "X-Admin-Token"}
	corsConfig.AllowCredentials = true

	// Global middleware
	engine.Use(cors.New(corsConfig))
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.StructuredLogger(logger))
	engine.Use(metrics.Middleware())

	// Public surface: probes and scraping, never gated
	engine.GET("/metrics", metrics.Handler())
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)

	v1 := engine.Group("/api/v1")

	// Admin surface: tenant lifecycle, guarded by the admin token
	admin := v1.Group("/tenants")
	admin.Use(middleware.RequireAdminToken(cfg.App.AdminToken))
	{
		admin.POST("", tenantHandler.Create)
		admin.GET("", tenantHandler.List)
		admin.GET("/:slug", tenantHandler.Get)
		admin.GET("/:slug/usage", tenantHandler.GetUsage)
		admin.PUT("/:slug/tier", tenantHandler.ChangeTier)
		admin.DELETE("/:slug", tenantHandler.Delete)
		admin.POST("/:slug/billing/:transition", tenantHandler.BillingTransition)
	}

	// Data plane: resolved, gated, metered
	data := v1.Group("")
	data.Use(resolver.Middleware())
	data.Use(gate.Middleware())
	data.Use(middleware.MeterAPICalls(usageSvc))
	data.Use(middleware.RequireQuota(usageSvc, models.MetricAPICalls))
	{
		data.GET("/properties", hotelHandler.ListProperties)
		data.POST("/properties",
			middleware.RequireQuota(usageSvc, models.MetricProperties),
			hotelHandler.CreateProperty)
		data.GET("/bookings", hotelHandler.ListBookings)
		data.POST("/bookings",
			middleware.RequireQuota(usageSvc, models.MetricBookings),
			hotelHandler.CreateBooking)
	}

	return engine
}

// seedTiers makes sure the default tier catalog exists. Existing tiers are
// left untouched so operator edits survive restarts.
func seedTiers(ctx context.Context, database *multitenancy.DB) error {
	tiers := []models.SubscriptionTier{
		{Name: "trial", DisplayName: "Trial",
			Limits: models.TierLimits{MaxProperties: 1, MaxBookingsPerMonth: 50, MaxAPICallsPerDay: 1000}},
		{Name: "basic", DisplayName: "Basic",
			Limits:     models.TierLimits{MaxProperties: 5, MaxBookingsPerMonth: 1000, MaxAPICallsPerDay: 10000},
			PriceCents: 4900},
		{Name: "pro", DisplayName: "Pro",
			Limits:     models.TierLimits{MaxProperties: 25, MaxBookingsPerMonth: 10000, MaxAPICallsPerDay: 100000},
			PriceCents: 19900},
		{Name: "enterprise", DisplayName: "Enterprise",
			Limits:     models.TierLimits{MaxProperties: 0, MaxBookingsPerMonth: 0, MaxAPICallsPerDay: 0},
			PriceCents: 99900},
	}

	for i := range tiers {
		tiers[i].IsActive = true
		var existing models.SubscriptionTier
		err := database.WithContext(ctx).Where("name = ?", tiers[i].Name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := database.WithContext(ctx).Create(&tiers[i]).Error; err != nil {
			return err
		}
		log.Printf("Seeded subscription tier %q", tiers[i].Name)
	}
	return nil
}

func newLogger(cfg config.AppConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

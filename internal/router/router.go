package router

import (
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/postacad/backend/internal/cache"
	"github.com/anonto42/postacad/backend/internal/handlers"
	"github.com/anonto42/postacad/backend/internal/metrics"
	"github.com/anonto42/postacad/backend/internal/middleware"
	"github.com/anonto42/postacad/backend/internal/models"
	"github.com/anonto42/postacad/backend/internal/payments"
	"github.com/anonto42/postacad/backend/internal/poststats"
	"github.com/anonto42/postacad/backend/internal/repositories"
	"github.com/anonto42/postacad/backend/internal/storage"
	"github.com/anonto42/postacad/backend/pkg/config"
	"github.com/anonto42/postacad/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the connections and clients the routes are built on. AuthClient and Cache are
// optional.
type Deps struct {
	Config     *config.Config
	Postgres   *gorm.DB
	Mongo      *mongo.Database
	AuthClient *auth.Client
	Files      storage.FileStore
	Cache      cache.Store
	Metrics    *metrics.Metrics
}

// SetupRoutes migrates the relational models, configures all application routes and injects
// dependencies. The returned registry owns the post card sessions; the caller runs its janitor
// and closes it on shutdown.
func SetupRoutes(e *echo.Echo, deps Deps) (*poststats.Registry, error) {
	log := logger.Named("router")
	cfg := deps.Config

	if deps.Files == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}

	err := deps.Postgres.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.SavedPost{},
		&models.Transaction{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("PostgreSQL auto-migrations completed")

	e.Use(middleware.RequestMetrics(deps.Metrics))

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(deps.Postgres)
	postRepo := repositories.NewMongoPostRepository(deps.Mongo)
	likeRepo := repositories.NewMongoLikeRepository(deps.Mongo)
	followRepo := repositories.NewPostgresFollowRepository(deps.Postgres)
	txRepo := repositories.NewPostgresTransactionRepository(deps.Postgres)

	var savedPostRepo repositories.SavedPostRepository = repositories.NewPostgresSavedPostRepository(deps.Postgres)
	if deps.Cache != nil {
		savedPostRepo = cache.NewSavedPostRepository(savedPostRepo, deps.Cache, logger.Named("cache"))
		log.Info("Saved post lists are cached in Redis")
	}

	stats := poststats.NewRegistry(
		poststats.NewStore(likeRepo, savedPostRepo),
		poststats.Config{Cooldown: cfg.SaveCooldown, SessionTTL: cfg.StatsSessionTTL},
		logger.Named("poststats"),
		deps.Metrics,
	)

	// a nil *payments.Checkout must not become a non-nil interface
	var checkout handlers.CheckoutProvider
	if c := payments.NewCheckout(payments.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	}); c != nil {
		checkout = c
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, purchases complete without checkout")
	}

	// auth.Client is only an interface value when Firebase is configured
	var firebaseAuth handlers.FirebaseAuth
	var verifier middleware.IDTokenVerifier
	if deps.AuthClient != nil {
		firebaseAuth = deps.AuthClient
		verifier = deps.AuthClient
	}

	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuth, cfg.JWTSecret, logger.Named("auth"))
	purchaseHandler := handlers.NewPurchaseHandler(postRepo, txRepo, checkout, deps.Metrics, logger.Named("purchases"))

	// --- Unprotected routes ---
	public := e.Group("/api/v1")
	authHandler.RegisterAuthRoutes(public.Group("/auth"))
	purchaseHandler.RegisterWebhookRoutes(public)
	log.Info("Auth and webhook routes configured")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, verifier, userRepo))

	authHandler.RegisterSessionRoutes(api)
	handlers.NewUserHandler(userRepo, postRepo, followRepo, likeRepo).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo, logger.Named("follows")).RegisterFollowRoutes(api)
	handlers.NewPostHandler(postRepo, userRepo, savedPostRepo, deps.Files, stats, logger.Named("posts")).RegisterPostRoutes(api)
	handlers.NewFeedHandler(postRepo, userRepo, followRepo, savedPostRepo, stats).RegisterFeedRoutes(api)
	handlers.NewPostStatsHandler(stats, postRepo, userRepo, savedPostRepo, logger.Named("poststats")).RegisterPostStatsRoutes(api)
	handlers.NewFileHandler(deps.Files, postRepo, txRepo, deps.Metrics, logger.Named("files")).RegisterFileRoutes(api)
	purchaseHandler.RegisterPurchaseRoutes(api)

	log.Info("All routes configured", zap.Int("routes", len(e.Routes())))
	return stats, nil
}

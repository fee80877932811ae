package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/config"
	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/brandonhuynh1/signage-api/internal/handlers"
	"github.com/brandonhuynh1/signage-api/internal/metrics"
	"github.com/brandonhuynh1/signage-api/internal/services"
	"github.com/brandonhuynh1/signage-api/internal/storage"
	"github.com/brandonhuynh1/signage-api/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.Environment)
	logger.Info().Msg("Starting Signage API")

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.Info().Msg("Running in development mode")
	}

	// Initialize database connections
	logger.Info().Msg("Connecting to PostgreSQL")
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	// Run database migrations
	logger.Info().Msg("Running database migrations")
	if err := database.RunMigrations(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize Redis
	logger.Info().Msg("Connecting to Redis")
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize object storage
	store, err := storage.New(context.Background(), cfg.Storage, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize S3 storage")
	}

	// Initialize services
	tokens, err := services.NewTokenManager(cfg.Auth)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize token manager")
	}
	events := services.NewEventBus(redisClient, logger)
	sessionService := services.NewSessionService(db, events, cfg.Players.OnlineThreshold, logger)
	authService := services.NewAuthService(db, tokens, cfg.Auth.BcryptCost, logger)
	mediaService := services.NewMediaService(db, store, cfg.Storage.MaxFileMB, logger)
	playlistService := services.NewPlaylistService(db, store, logger)
	playerService := services.NewPlayerService(db, sessionService, events, logger)
	tvappService := services.NewTVAppService(db, sessionService, store, logger)
	trashService := services.NewTrashService(db, store, logger)
	analyticsService := services.NewAnalyticsService(db, sessionService, store, logger)

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.RequestID())
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(metrics.Middleware())
	router.Use(handlers.RateLimiter(redisClient, cfg.RateLimit, logger))

	// Register routes
	logger.Info().Msg("Registering routes")
	handlers.RegisterHealthHandlers(router, db, redisClient, logger)
	handlers.RegisterAuthHandlers(router, authService, logger)
	handlers.RegisterMediaHandlers(router, mediaService, tokens, cfg.Storage.MaxFileMB, logger)
	handlers.RegisterPlaylistHandlers(router, playlistService, events, tokens, logger)
	handlers.RegisterPlayerHandlers(router, playerService, events, tokens, logger)
	handlers.RegisterTVAppHandlers(router, tvappService, sessionService, logger)
	handlers.RegisterTrashHandlers(router, trashService, tokens, logger)
	handlers.RegisterAnalyticsHandlers(router, analyticsService, tokens, logger)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", utils.RequestIDHeader},
		ExposedHeaders:   []string{utils.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// Setup server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      corsHandler(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	// Close stale player sessions in the background
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sessionService.RunSweeper(sweepCtx, cfg.Players.SweepInterval)

	// Start server in a goroutine
	go func() {
		logger.Info().Msgf("Starting server on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server...")
	stopSweeper()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.GracefulShutdownSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exiting")
}

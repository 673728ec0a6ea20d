package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kidsclub-backend/config"
	"kidsclub-backend/internal/api"
	"kidsclub-backend/internal/billing"
	"kidsclub-backend/internal/checkin"
	"kidsclub-backend/internal/db"
	"kidsclub-backend/internal/notification"
	"kidsclub-backend/internal/store"
	"kidsclub-backend/internal/sweeper"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "kidsclubd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Notify.Push.Enabled && (cfg.Notify.Push.PublicKey == "" || cfg.Notify.Push.PrivateKey == "") {
		logger.Fatalf("VAPID keys must be configured when the push channel is enabled.")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// Billing connector bound to the configured POS terminal
	posConnector := billing.NewPOSConnector(gormDB, cfg.Billing.POSTerminalID, cfg.Billing.Currency)

	// OTP delivery worker pool
	notifier := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, cfg.Notify, cfg.OTP.TTLMinutes)
	notifier.Start(ctx)

	// Check-in lifecycle manager
	checkinSvc := checkin.NewService(appStore, posConnector, notifier, cfg.OTP.TTL)

	// Subscription status sweeper in the background
	sweepSvc := sweeper.NewService(cfg, appStore)
	go sweepSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(cfg, appStore, checkinSvc, posConnector)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

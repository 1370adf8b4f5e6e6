package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"brewpulse/config"
	"brewpulse/internal/api"
	"brewpulse/internal/auth"
	"brewpulse/internal/db"
	"brewpulse/internal/events"
	"brewpulse/internal/notification"
	"brewpulse/internal/store"
	"brewpulse/internal/suggest"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "brewpulsed ", log.LstdFlags)

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

	if cfg.Auth.AdminPassword == "" {
		logger.Println("no admin password configured; barista sign-in is disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("failed to migrate database: %v", err)
	}
	logger.Printf("database initialized successfully (%s)", cfg.Database.Driver)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orderStore := store.NewGormStore(gormDB, store.WithWriteTimeout(cfg.Store.WriteTimeout))
	logger.Println("order store initialized")

	menu := cfg.OrderMenu()
	deps := api.Deps{
		Store:     orderStore,
		Auth:      auth.NewService(cfg.Auth),
		Menu:      menu,
		Suggester: suggest.NewClient(cfg.Suggestion, menu),
	}

	// Web push for admin devices is optional
	if cfg.Push.Enabled() {
		webpushOptions := webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
		pool.Start(ctx)
		stopRelay := notification.NewRelay(orderStore, pool).Start()
		defer stopRelay()

		deps.Registry = notification.NewRegistry(gormDB)
		deps.WebPush = &webpushOptions
		logger.Printf("push notifications enabled with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; push notifications are disabled")
	}

	// Order events to Kafka are optional
	if cfg.Events.Enabled {
		publisher, err := events.NewPublisher(cfg.Events)
		if err != nil {
			logger.Fatalf("failed to start event publisher: %v", err)
		}
		stopEvents := publisher.Start(orderStore)
		defer func() {
			stopEvents()
			if err := publisher.Close(); err != nil {
				logger.Printf("event publisher close: %v", err)
			}
		}()
	}

	// Initialize router
	router := api.NewRouter(api.NewHandler(deps), cfg.Server)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
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

	// Event streams stay open until their clients leave; cancelling the
	// base context ends them so Shutdown can finish.
	server.RegisterOnShutdown(cancel)

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

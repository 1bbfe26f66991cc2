/*
Package main is the entry point for the HotelChat service.

It is responsible for loading configuration, initializing the global logging system,
opening the store, wiring the account, hotel, chat and favorite services, setting up the
HTTP server with the live hub, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotelchat/internal/app/chat"
	"hotelchat/internal/app/db"
	"hotelchat/internal/app/favorite"
	"hotelchat/internal/app/hotel"
	"hotelchat/internal/app/live"
	"hotelchat/internal/app/memstore"
	"hotelchat/internal/app/storage"
	"hotelchat/internal/app/user"
	"hotelchat/internal/configs"
	"hotelchat/internal/handler"
	"hotelchat/internal/pkg/logx"
)

// store is what a backing store has to implement.
type store interface {
	user.Repository
	hotel.Repository
	chat.Repository
	favorite.Repository
}

func openStore(ctx context.Context, cfg *configs.AppConfig) (store, func(), error) {
	if cfg.StoreDriver == configs.StoreDriverMemory {
		logx.Warn("Using the in-memory store; all data is lost on restart.")
		return memstore.New(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool), pool.Close, nil
}

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Bool("avatar_storage", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open store")
	}
	defer closeStore()

	hub := live.NewHub()
	users := user.NewService(st, cfg.OperatorCode)
	hotels := hotel.NewRegistry(st)

	deps := &handler.AppDeps{
		Config:    cfg,
		Users:     users,
		Hotels:    hotels,
		Chats:     chat.NewEngine(st, hotels, chat.WithNotifier(hub)),
		Favorites: favorite.NewLedger(st, hotels),
		Live:      hub,
	}

	if cfg.StorageEnabled() {
		objects, err := storage.NewObjectStore(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar storage")
		}
		deps.Avatars = storage.NewAvatars(objects, users, cfg.S3PublicBaseURL)
	}

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, deps); err != nil {
			logx.Error(err, "Failed to seed demo data")
		}
	}

	limiters := handler.NewLimiters()
	defer limiters.Stop()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps, limiters),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("HotelChat service starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}

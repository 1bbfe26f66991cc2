/*
Package main is the HotelChat terminal client.

It restores the persisted session of the configured profile, then shows the sign-in form, the
inbox of chat rooms or an open room depending on the session. Logs go to a file next to the
session so they do not disturb the terminal UI.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"hotelchat/internal/client/api"
	"hotelchat/internal/client/conversation"
	"hotelchat/internal/client/directory"
	"hotelchat/internal/client/favorites"
	"hotelchat/internal/client/gateway"
	"hotelchat/internal/client/session"
	"hotelchat/internal/configs"
	"hotelchat/internal/pkg/logx"
)

func openBackend(ctx context.Context, cfg *configs.ClientConfig) (session.Backend, error) {
	if cfg.RedisAddr != "" {
		rdb, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return session.NewRedisBackend(rdb, cfg.Profile, true), nil
	}
	return session.NewFileBackend(cfg.SessionDir, cfg.Profile, session.DefaultPollInterval)
}

func main() {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create %s: %v\n", cfg.SessionDir, err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.SessionDir, "concierge.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logx.InitGlobalLoggerTo(logFile, level)
	logx.Info("Concierge starting", "api", cfg.APIBaseURL, "profile", cfg.Profile, "redis", cfg.RedisAddr != "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to open session storage: %v\n", err)
		os.Exit(1)
	}

	store := session.NewStore(backend)
	defer store.Close()

	client := api.New(cfg.APIBaseURL, store)
	d := &services{
		store:     store,
		gateway:   gateway.New(client, store),
		directory: directory.New(client, store),
		chat:      conversation.New(client, store),
		favorites: favorites.New(client, store),
	}

	p := tea.NewProgram(newApp(ctx, d), tea.WithAltScreen())

	// Start after the program exists so the first snapshot is not missed by the UI.
	go func() {
		if err := store.Start(ctx); err != nil {
			logx.Warn("Session storage degraded", "error", err.Error())
		}
	}()

	if _, err := p.Run(); err != nil {
		logx.Error(err, "Terminal UI failed")
		fmt.Fprintf(os.Stderr, "Alas, there's been an error: %v\n", err)
		os.Exit(1)
	}
	logx.Info("Concierge stopped")
}

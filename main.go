package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"parley/server/internal/auth"
	"parley/server/internal/core"
	"parley/server/internal/httpapi"
	"parley/server/internal/store"
	"parley/server/internal/ws"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "parley.db", "SQLite user directory path")
	jwtSecret := flag.String("jwt-secret", "", "JWT signing secret (defaults to $JWT_SECRET)")
	retention := flag.Duration("retention", defaultRetention, "Message retention before purge")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	flag.Parse()

	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	secret := strings.TrimSpace(*jwtSecret)
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		secret = "fallback-secret"
		slog.Warn("no JWT secret configured, using insecure fallback")
	}

	if RunCLI(flag.Args(), *dbPath, secret) {
		return
	}

	slog.Info("starting server", "version", Version, "addr", *addr, "db", *dbPath, "retention", *retention)

	directory, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("open sqlite store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := directory.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()

	registry := core.NewRegistry()
	seedRooms(registry)

	verifier := auth.NewVerifier(secret)
	wsHandler := ws.NewHandler(registry, verifier, directory)
	server := httpapi.New(registry, wsHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("received interrupt, shutting down")
		cancel()
	}()

	go RunMetrics(ctx, registry, metricsInterval)
	go RunRetention(ctx, registry, *retention, retentionSweepInterval)

	slog.Info("listening", "addr", *addr)
	if err := server.Run(ctx, *addr); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// seedRooms creates the bootstrap rooms and greeting messages so a fresh
// process is immediately usable. AlreadyExists is impossible on an empty
// registry; any other validation failure here is a programming error.
func seedRooms(registry *core.Registry) {
	seeds := []core.RoomSpec{
		{ID: "general", Name: "General", Description: "Open discussion for everyone", MaxUsers: generalRoomCapacity, CreatedBy: "system"},
		{ID: "tech", Name: "Tech Talk", Description: "Programming and development topics", MaxUsers: techRoomCapacity, CreatedBy: "system"},
		{ID: "random", Name: "Random", Description: "Anything goes", MaxUsers: randomRoomCapacity, CreatedBy: "system"},
	}
	for _, spec := range seeds {
		if _, err := registry.CreateRoom(spec); err != nil {
			slog.Error("seed room", "room_id", spec.ID, "err", err)
			os.Exit(1)
		}
	}

	registry.Append("general", "system", "System", "Welcome to the chat server!", core.MessageTypeSystem)
	registry.Append("general", "system", "System", "Be kind and keep it civil.", core.MessageTypeSystem)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-core/auth"
	"chat-core/domain"
	"chat-core/friends"
	"chat-core/gateway"
	"chat-core/internal"
	"chat-core/repositories"
	"chat-core/runtime"
	"chat-core/runtime/workers"
	"chat-core/search"
	"chat-core/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting so that deferred cleanup always executes before exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Component graph & supervision
	supervisor := workers.NewSupervisor(logger)
	persistence := repositories.NewBadgerStore(db, logger, config.LimitMessages)
	friendGraph := friends.NewGraph()
	if err := seedFriendships(friendGraph, config.Friendships); err != nil {
		return exitConfig, err
	}
	index := search.NewIndex(blugeWriter, logger)

	orchestrator := runtime.NewOrchestrator(
		logger, supervisor, friendGraph, persistence,
		config.BufferSize, config.SinkTimeout,
		index,
	)
	if err := persistence.RestoreSessions(orchestrator.Store); err != nil {
		return exitRuntime, fmt.Errorf("restoring sessions: %w", err)
	}

	service := services.NewChatService(orchestrator, index)
	identity := auth.NewProvider([]byte(config.JWTSecret), config.AuthTokenDuration)

	if config.DebugPort != nil {
		logger.Info("Starting debug inspector", "port", *config.DebugPort)
		internal.StartDebugServer(db, *config.DebugPort, orchestrator.Stats.Snapshot)
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)

	// 5. Start the Engine (fanout worker + health reporting)
	go func() {
		logger.Info("Starting orchestrator...")
		orchestrator.Start(ctx, config.MetricInterval)
	}()

	// 6. HTTP gateway
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler := gateway.NewHandler(logger, service, identity, config.ConnectionBufferSize, config.MaxContentLength)
	handler.RegisterRoutes(engine)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: engine}

	go func() {
		logger.Info("Starting websocket gateway", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// seedFriendships parses "alice:bob,alice:carol" pairs into the graph.
func seedFriendships(graph *friends.Graph, pairs string) error {
	if pairs == "" {
		return nil
	}
	for _, pair := range strings.Split(pairs, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("FRIENDSHIPS entry %q is not of the form user:user", pair)
		}
		graph.Add(domain.UserID(parts[0]), domain.UserID(parts[1]))
	}
	return nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

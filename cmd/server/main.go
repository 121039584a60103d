package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	std "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chat-sync/auth"
	"chat-sync/directory"
	httpapi "chat-sync/infrastructure/http"
	"chat-sync/internal"
	"chat-sync/realtime"
	"chat-sync/repositories"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"chat-sync/services"
	"chat-sync/sink"
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

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// All defers (database close, index close) execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		endpoint := "/inspect"
		logger.Info("Debug store inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		internal.StartDebugServer(db, debugPort, endpoint, internal.DefaultMapper)
	}

	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeCfg := bluge.DefaultConfig(config.BlugeFilepath)
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & Engine
	conversations := repositories.NewConversationRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	mirrors := repositories.NewMirrorRepository(db, logger)
	profiles := repositories.NewProfileRepository(db)

	coordinator := runtime.NewCoordinator(logger, conversations, messages, mirrors, profiles,
		config.BufferSize, config.MirrorRetryMax, config.MirrorRetryBase)
	channel := realtime.NewChannel(logger, messages, mirrors, config.ConnectionBufferSize)

	dir := directory.NewDirectory(blugeWriter, profiles, logger, config.SearchLimit)
	if err := dir.Reindex(); err != nil {
		return exitRuntime, fmt.Errorf("directory reindex failed: %w", err)
	}

	identity := auth.NewProvider(profiles, []byte(config.AuthSecret), config.AuthTokenDuration)
	chatService := services.NewChatService(coordinator, channel)

	// 4. Supervision: event fanout plus the background reconciler.
	fanout := workers.NewEventFanout(logger, coordinator.Events(), config.SinkTimeout,
		channel, sink.NewLogSink(logger))
	reconciler := workers.NewReconciler(logger, conversations, messages, mirrors, profiles,
		coordinator.Emit, config.ReconcileInterval)

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(fanout, reconciler)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		logger.Info("Starting supervised workers...")
		sup.Run(ctx)
	}()

	// 6. HTTP Server Setup
	if !logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler := httpapi.NewHandler(logger, chatService, identity, dir)
	handler.RegisterRoutes(engine)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &std.Server{Addr: address, Handler: engine}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, std.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
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
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete", "error", err)
	}
	<-supDone
	logger.Info("Program stopped cleanly")

	return exitOK, nil
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

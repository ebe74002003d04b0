package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"support-chat/auth"
	"support-chat/envelope"
	"support-chat/infrastructure/ws"
	"support-chat/internal"
	"support-chat/moderation"
	"support-chat/observability"
	"support-chat/repositories"
	"support-chat/runtime"
	"support-chat/runtime/workers"
	"support-chat/search"
	"support-chat/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, index
// flush) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & Event Log
	conversations := repositories.NewConversationRepository(db, log)
	unread := repositories.NewUnreadStore(db)
	eventLog, err := repositories.NewEventLog(db, log)
	if err != nil {
		return fmt.Errorf("event log setup failed: %w", err)
	}
	defer func() { _ = eventLog.Close() }()

	// 4. Domain Services
	words, err := moderation.EmbeddedWords()
	if err != nil {
		return fmt.Errorf("loading censored words failed: %w", err)
	}
	moderator, err := moderation.NewModerator(words, censoredChar)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	stats := observability.NewStats()
	index := search.NewMessageIndex(blugeWriter, log)
	registry := runtime.NewRegistry(log)
	publisher := runtime.NewPublisher(log, envelope.NewCodec(), eventLog, conversations, registry, stats)
	messages := services.NewMessageService(log, conversations, unread, moderator, index, stats)
	conversationService := services.NewConversationService(log, conversations)
	tokens := auth.NewTokenManager([]byte(config.AuthSecret), config.AuthTokenDuration)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Background Workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewBadgerGCWorker(db, log, config.GCInterval),
		workers.NewReporterWorker(stats, log, config.MetricInterval),
	)
	go sup.Run(ctx)

	// 7. HTTP & Websocket Server
	server := ws.NewServer(ws.Config{
		ConnectionBufferSize: config.ConnectionBufferSize,
		WriteTimeout:         config.WriteTimeout,
		PingInterval:         config.PingInterval,
		ReplayDefaultLimit:   config.ReplayDefaultLimit,
		ReplayMaxLimit:       config.ReplayMaxLimit,
	}, ws.Deps{
		Log:           log,
		Tokens:        tokens,
		Registry:      registry,
		Publisher:     publisher,
		Messages:      messages,
		Conversations: conversationService,
		Repository:    conversations,
		Unread:        unread,
		EventLog:      eventLog,
		Index:         index,
		Stats:         stats,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: server.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown was not clean", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// Command ledgerd serves the token ledger: a signed-operation HTTP
// API with a websocket event feed, prometheus metrics and an optional
// ClickHouse event sink. State lives in memory, badger or PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"token-ledger/internal/events"
	"token-ledger/internal/ledger"
	"token-ledger/internal/oplog"
	"token-ledger/internal/server"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/badgerstore"
	chstore "token-ledger/internal/storage/clickhouse"
	"token-ledger/internal/storage/memory"
	"token-ledger/internal/storage/migrations"
	pgstore "token-ledger/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	badgerDir := flag.String("badger-dir", os.Getenv("BADGER_DIR"), "Badger database directory")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the event sink (optional)")
	oplogPath := flag.String("oplog", os.Getenv("LEDGER_OPLOG"), "File to append accepted operations to (optional)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of a durable store")
	sinkInterval := flag.Duration("sink-interval", 2*time.Second, "ClickHouse sink flush interval")
	feedBuffer := flag.Int("feed-buffer", 1024, "Per-subscriber event feed buffer")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ledgerd] ", log.LstdFlags|log.Lshortfile)

	// Validate store selection
	backends := 0
	for _, selected := range []bool{*useMemory, *badgerDir != "", *postgresDSN != ""} {
		if selected {
			backends++
		}
	}
	if backends == 0 {
		logger.Fatal("A store is required: --postgres-dsn, --badger-dir or --use-memory")
	}
	if backends > 1 {
		logger.Fatal("--postgres-dsn, --badger-dir and --use-memory are mutually exclusive")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create store
	store, cleanup, err := createStore(ctx, *postgresDSN, *badgerDir, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create store: %v", err)
	}
	defer cleanup()

	// Create event bus and ledger facade
	bus := events.NewBus(events.Options{Buffer: *feedBuffer, Logger: logger})
	led, err := ledger.New(ledger.Options{
		Store:  store,
		Bus:    bus,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create ledger: %v", err)
	}

	// Open operation log
	var opLog *oplog.Writer
	if *oplogPath != "" {
		f, err := os.OpenFile(*oplogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Fatalf("Failed to open oplog %s: %v", *oplogPath, err)
		}
		defer f.Close()
		opLog = oplog.NewWriter(f)
		logger.Printf("Appending accepted operations to %s", *oplogPath)
	}

	srv, err := server.New(server.Options{
		Ledger: led,
		Bus:    bus,
		OpLog:  opLog,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Optional ClickHouse sink follows the journal in the background
	if *clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to prepare clickhouse: %v", err)
		}
		defer chConn.Close()

		sink := chstore.NewEventSink(chConn, store, chstore.SinkOptions{
			Interval: *sinkInterval,
			Logger:   logger,
		})
		go func() {
			if err := sink.Run(ctx); err != nil {
				logger.Printf("Event sink stopped: %v", err)
			}
		}()
		logger.Println("ClickHouse event sink enabled")
	}

	// Run the HTTP server until shutdown
	err = srv.Run(ctx, *listenAddr)
	done <- err
	cancel()
	bus.Close()

	if err != nil {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStore builds the selected ledger store and its cleanup.
func createStore(ctx context.Context, postgresDSN, badgerDir string, useMemory bool, logger *log.Logger) (storage.LedgerStore, func(), error) {
	if useMemory {
		store := memory.NewLedgerStore()
		logger.Println("Using in-memory storage (state is lost on exit)")
		return store, func() { store.Close() }, nil
	}

	if badgerDir != "" {
		store, err := badgerstore.Open(badgerDir, badgerstore.Options{Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		logger.Printf("Using badger storage at %s", badgerDir)
		return store, func() { store.Close() }, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN, pgstore.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	store := pgstore.NewLedgerStore(pool)
	logger.Println("Using PostgreSQL storage")

	cleanup := func() {
		store.Close()
		pool.Close()
	}
	return store, cleanup, nil
}

func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the healthcare coordination record engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Build the zap logger
  3. Open the storage backend (sqlite, leveldb, or memory)
  4. Wire the four record registries into an engine
  5. Configure the HTTP router and optional dev block ticker
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -backend         Storage backend: sqlite | leveldb | memory (default: sqlite)
  -db              Database path (default: records.db; sqlite accepts ":memory:")
  -admin           Initial admin identity for all four stores (default: admin)
  -config          Path to a JSON engine config; overrides -admin
  -start-height    Initial logical height (default: 1)
  -block-interval  Dev ticker interval, e.g. 2s; 0 disables (default: 0)
  -log-level       zap level: debug | info | warn | error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for active requests
  (30s timeout), stop the ticker, close the backend, exit.

EXAMPLES:
  ./server -backend=sqlite -db=./data/records.db -admin=ops-admin
  ./server -backend=memory -block-interval=2s
  ./server -backend=leveldb -db=./data/records.ldb -config=./engine.json

SEE ALSO:
  - api/server.go: Router configuration
  - factory/engine.go: Engine wiring
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/caremesh/record-engine/api"
	"github.com/caremesh/record-engine/factory"
	"github.com/caremesh/record-engine/generic"
	memstore "github.com/caremesh/record-engine/generic/store"
	"github.com/caremesh/record-engine/store/leveldb"
	"github.com/caremesh/record-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	backendName := flag.String("backend", "sqlite", "storage backend: sqlite | leveldb | memory")
	dbPath := flag.String("db", "records.db", "database path")
	admin := flag.String("admin", "admin", "initial admin identity for all stores")
	configPath := flag.String("config", "", "JSON engine config path (overrides -admin)")
	startHeight := flag.Uint64("start-height", 1, "initial logical height")
	blockInterval := flag.Duration("block-interval", 0, "dev block ticker interval (0 disables)")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	flag.Parse()

	log := newLogger(*logLevel)
	defer log.Sync()

	// Storage backend
	backend, closer, err := openBackend(*backendName, *dbPath)
	if err != nil {
		log.Fatal("failed to open backend", zap.String("backend", *backendName), zap.Error(err))
	}
	defer closer()

	// Engine config
	cfg := factory.SingleAdminConfig(generic.Identity(*admin), generic.Height(*startHeight))
	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatal("failed to read engine config", zap.Error(err))
		}
		cfg, err = factory.ParseConfig(string(raw))
		if err != nil {
			log.Fatal("failed to parse engine config", zap.Error(err))
		}
	}

	engine, err := factory.NewEngine(context.Background(), backend, cfg)
	if err != nil {
		log.Fatal("failed to wire engine", zap.Error(err))
	}

	// Optional dev block producer
	if *blockInterval > 0 {
		ticker := api.NewClockTicker(engine.Clock, *blockInterval, log)
		ticker.Start()
		defer ticker.Stop()
		log.Info("dev block ticker running", zap.Duration("interval", *blockInterval))
	}

	handler := api.NewHandler(engine, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.Int("port", *port),
			zap.String("backend", *backendName),
			zap.Uint64("height", uint64(engine.Clock.Height())))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// openBackend constructs the selected storage backend and its closer.
func openBackend(name, path string) (generic.TxRecordStore, func(), error) {
	switch name {
	case "sqlite":
		st, err := sqlite.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	case "leveldb":
		st, err := leveldb.New(path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	case "memory":
		return memstore.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", name)
}

// newLogger builds the production zap logger at the requested level.
func newLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log.With(zap.String("service", "record-engine"))
}

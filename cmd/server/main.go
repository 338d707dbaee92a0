/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the substitution-plan engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Initialize the SQLite workbook
  3. Wire feed client, record store and ingestion orchestrator
  4. Configure HTTP router, start background scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (optional; env vars always apply)
  -port    HTTP server port (overrides config)
  -db      Workbook database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the ingestion scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/vplan.db"

  # Run with a config file
  ./server -config=./config.yaml

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Workbook implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schulwerk/vplan-engine/api"
	"github.com/schulwerk/vplan-engine/config"
	"github.com/schulwerk/vplan-engine/feed"
	"github.com/schulwerk/vplan-engine/ingest"
	"github.com/schulwerk/vplan-engine/store/sqlite"
	"github.com/schulwerk/vplan-engine/tabular"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "workbook database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.DBPath = *dbPath
	}

	// Initialize workbook
	workbook, err := sqlite.New(cfg.Store.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer workbook.Close()

	// Wire stores and orchestrator
	records := tabular.NewRecordStore(workbook.Sheet(cfg.Store.ScheduleSheet))
	variance := tabular.NewVarianceStore(workbook)
	client := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.Username, cfg.Feed.Password)
	orchestrator := ingest.New(client, records, cfg.Ingest.Workers)

	handler := api.NewHandler(records, variance, orchestrator,
		time.Duration(cfg.Server.CacheSeconds)*time.Second)
	router := api.NewRouter(handler)

	// Background ingestion, only useful with a feed configured
	scheduler := api.NewIngestScheduler(orchestrator, handler)
	scheduler.Enabled = cfg.Feed.BaseURL != ""
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

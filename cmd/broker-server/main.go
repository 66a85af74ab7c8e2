// Package main provides the broker server executable with HTTP API and background sweep.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coregx/broker"
	brokerprom "github.com/coregx/broker/adapters/prometheus"
	brokersql "github.com/coregx/broker/adapters/relica"
	brokerlog "github.com/coregx/broker/adapters/zerolog"
	"github.com/coregx/broker/cmd/broker-server/internal/api"
	"github.com/coregx/broker/cmd/broker-server/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "broker-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := brokerlog.New(os.Stdout, cfg.Server.LogLevel)
	logger.Infof("Starting broker server v%s", api.Version)
	logger.Infof("Configuration loaded: server=%s:%d, workers=%d, queue=%d, sweep=%ds/%ds (%s), audit=%q",
		cfg.Server.Host, cfg.Server.Port, cfg.Broker.Workers, cfg.Broker.QueueSize,
		cfg.Broker.SweepDelay, cfg.Broker.SweepPeriod, cfg.Broker.SweepPolicy, cfg.Audit.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := append(cfg.Broker.Options(),
		broker.WithLogger(logger.WithComponent("broker")),
		broker.WithMetrics(brokerprom.NewRecorder(prometheus.DefaultRegisterer)),
	)

	var audit broker.AuditRepository
	if cfg.Audit.Enabled() {
		db, err := openAuditDB(ctx, cfg.Audit)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Errorf("Failed to close audit database: %v", closeErr)
			}
		}()

		audit = brokersql.NewAuditRepositoryWithPrefix(db, cfg.Audit.Driver, cfg.Audit.Prefix)
		opts = append(opts, broker.WithAuditSink(audit))
		logger.Infof("Audit trail enabled (%s, prefix=%s)", cfg.Audit.Driver, cfg.Audit.Prefix)
	}

	b, err := broker.NewBroker(opts...)
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}
	defer b.Close()

	for _, name := range cfg.Broker.Topics {
		if _, err := b.CreateTopic(name); err != nil {
			return fmt.Errorf("failed to create topic %s: %w", name, err)
		}
	}

	b.ScheduleNotifications(ctx)

	handler := api.NewHandler(b, logger.WithComponent("api"))
	if audit != nil {
		handler.WithAudit(audit)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(promhttp.Handler()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	cancel() // Stop sweep
	logger.Info("Server stopped gracefully")
	return nil
}

// openAuditDB connects to the audit database and applies the embedded migrations.
func openAuditDB(ctx context.Context, cfg config.AuditConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	if err := brokersql.ApplyMigrations(ctx, db, cfg.Driver, cfg.Prefix); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	return db, nil
}

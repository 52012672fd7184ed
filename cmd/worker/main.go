package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msantanna/splitledger/internal/config"
	"github.com/msantanna/splitledger/internal/consumer"
	"github.com/msantanna/splitledger/internal/engine"
	"github.com/msantanna/splitledger/internal/ledger"
	"github.com/msantanna/splitledger/internal/logging"
	"github.com/msantanna/splitledger/internal/provider"
	"github.com/msantanna/splitledger/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("splitledger-worker", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	recorder := ledger.NewRecorder(repository.NewLedgerRepository(db), cfg.DefaultCurrency)
	providerClient := provider.NewClient(
		cfg.TransferProviderURL,
		cfg.DefaultCurrency,
		time.Duration(cfg.TransferTimeoutS)*time.Second,
	)

	eng := engine.NewEngine(
		repository.NewPaymentRepository(db),
		repository.NewSplitRuleRepository(db),
		repository.NewSplitExecutionRepository(db),
		recorder,
		providerClient,
		time.Duration(cfg.TransferTimeoutS)*time.Second,
	)

	cons := consumer.New(
		repository.NewPaymentEventRepository(db, time.Duration(cfg.EventReclaimAfterS)*time.Second),
		eng,
		logger,
		time.Duration(cfg.PollIntervalS)*time.Second,
		cfg.PollBatchSize,
	)
	go cons.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("worker started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("worker stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("failed to write health response", "error", err)
	}
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := range 30 {
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeS) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second,
		})
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

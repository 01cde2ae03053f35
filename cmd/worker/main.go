package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mlbhits/pipeline/internal/backup"
	"mlbhits/pipeline/internal/cache"
	"mlbhits/pipeline/internal/client"
	"mlbhits/pipeline/internal/config"
	"mlbhits/pipeline/internal/integrity"
	"mlbhits/pipeline/internal/ledger"
	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/scheduler"
	"mlbhits/pipeline/internal/store"
	"mlbhits/pipeline/internal/verify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting MLB Hit Score Pipeline Worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Str("store", cfg.StoreBackend).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize the document store
	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer cleanup()
	log.Info().Str("backend", cfg.StoreBackend).Msg("Document store ready")

	// Initialize MLB Stats API client
	mlbClient := client.New(cfg.MLBBaseURL, cfg.MLBTimeout, cfg.Location(), nil)
	log.Info().Msg("MLB Stats API client initialized")

	// Wire the pipeline components
	rankings := cache.New(st, mlbClient, cache.Config{
		Location:     cfg.Location(),
		BoundaryHour: cfg.DailyBoundaryHour,
		Grace:        cfg.FastGrace(),
	})

	book := ledger.New(st, cfg.EliteThreshold)
	reconciler := verify.NewService(book, mlbClient)
	backups := backup.NewManager(st, cfg.BackupDir, nil)
	guard := integrity.NewGuard(book, rankings, backups, integrity.Config{
		Location:     cfg.Location(),
		BoundaryHour: cfg.DailyBoundaryHour,
		DailyFloor:   cfg.ExpectedDailyFloor,
		BackupMaxAge: cfg.BackupMaxAge,
	})

	// Start metrics HTTP server
	if cfg.EnableMetrics {
		go startMetricsServer(fmt.Sprintf("%d", cfg.MetricsPort))
	}

	// Start the query API server
	api := newAPIServer(cfg, rankings, book, guard)
	go func() {
		log.Info().Int("port", cfg.APIPort).Msg("Starting query API server")
		if err := api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Query API server failed")
		}
	}()

	// Update system uptime metric
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Create and start scheduler
	sched := scheduler.NewScheduler(cfg, guard, reconciler, backups)

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Query API shutdown failed")
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// openStore builds the configured store backend. The cleanup closes any
// held connections.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPGStore(ctx, store.PGConfig{
			Host:     cfg.DatabaseHost,
			Port:     cfg.DatabasePort,
			User:     cfg.DatabaseUser,
			Password: cfg.DatabasePassword,
			Database: cfg.DatabaseName,
			SSLMode:  cfg.DatabaseSSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil

	case "redis":
		rd, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rd, func() { _ = rd.Close() }, nil

	default:
		fs, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

// newAPIServer builds the read-only JSON query surface.
func newAPIServer(cfg *config.Config, rankings *cache.TieredCache, book *ledger.Ledger, guard *integrity.Guard) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/rankings", func(w http.ResponseWriter, r *http.Request) {
		forceSlow, forceFast := false, false
		switch r.URL.Query().Get("refresh") {
		case "slow":
			forceSlow = true
		case "fast":
			forceFast = true
		case "all":
			forceSlow, forceFast = true, true
		}

		table, err := rankings.RankedTable(r.Context(), forceSlow, forceFast)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}

		// Every served table is a recording opportunity; the ledger ignores
		// dates already written.
		today := time.Now().In(cfg.Location()).Format("2006-01-02")
		if _, _, err := book.RecordIfAbsent(r.Context(), today, table); err != nil {
			log.Error().Err(err).Msg("Failed to record predictions")
		}

		writeJSON(w, table)
	})

	mux.HandleFunc("/ledger/", func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimPrefix(r.URL.Path, "/ledger/")
		entries, found, err := book.Day(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("no predictions for %s", date))
			return
		}
		writeJSON(w, entries)
	})

	mux.HandleFunc("/toppicks/", func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimPrefix(r.URL.Path, "/toppicks/")
		picks, found, err := book.TopPicks(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("no top picks for %s", date))
			return
		}
		writeJSON(w, picks)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		dates, err := book.Dates(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, map[string]any{
			"cache":         rankings.Status(r.Context()),
			"ledger_dates":  len(dates),
			"elite_cutoff":  book.Threshold(),
			"store_backend": cfg.StoreBackend,
		})
	})

	mux.HandleFunc("/integrity", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
			return
		}
		report, err := guard.Sweep(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, report)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: mux,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

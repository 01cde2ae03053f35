// Command reconcile provides a hardened CLI for manually reconciling a past
// date's ledgered predictions against actual box scores. Safe to re-run; a
// second pass over the same date is a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"mlbhits/pipeline/internal/backup"
	"mlbhits/pipeline/internal/client"
	"mlbhits/pipeline/internal/config"
	"mlbhits/pipeline/internal/ledger"
	"mlbhits/pipeline/internal/store"
	"mlbhits/pipeline/internal/verify"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		date       = flag.String("date", "", "date to reconcile (YYYY-MM-DD, default yesterday)")
		skipBackup = flag.Bool("skip-backup", false, "skip the pre-reconciliation snapshot")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := config.MustLoad()

	target := *date
	if target == "" {
		target = time.Now().In(cfg.Location()).AddDate(0, 0, -1).Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", target); err != nil {
		log.Fatal().Str("date", target).Msg("Date must be YYYY-MM-DD")
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer cleanup()

	book := ledger.New(st, cfg.EliteThreshold)
	mlbClient := client.New(cfg.MLBBaseURL, cfg.MLBTimeout, cfg.Location(), nil)
	reconciler := verify.NewService(book, mlbClient)

	if !*skipBackup {
		log.Info().Msg("Snapshotting ledger before reconciliation...")
		backups := backup.NewManager(st, cfg.BackupDir, nil)
		if _, err := backups.Snapshot(ctx); err != nil {
			log.Fatal().Err(err).Msg("Snapshot failed; pass -skip-backup to proceed without one")
		}
	}

	log.Info().Str("date", target).Msg("Reconciling predictions against box scores")
	report, err := reconciler.Reconcile(ctx, target)
	if err != nil {
		log.Fatal().Err(err).Str("date", target).Msg("Reconciliation failed")
	}

	for _, dropped := range report.Dropped {
		log.Info().
			Str("player", dropped.PlayerName).
			Str("team", dropped.Team).
			Float64("score", dropped.HitScore).
			Msg("Dropped (no at-bats)")
	}

	log.Info().
		Str("date", target).
		Int("kept", report.Kept).
		Int("removed", report.Removed).
		Msg("Manual reconciliation complete.")
}

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
		if err := pg.Health(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("database health check failed: %w", err)
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

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PGStore keeps documents in a single Postgres table. It exists for
// deployments that already run Postgres and want the ledger queryable with
// SQL; semantics are identical to the file backend.
type PGStore struct {
	pool *pgxpool.Pool
}

// PGConfig holds Postgres connection settings.
type PGConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPGStore connects, verifies the connection, and ensures the documents
// table exists.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS pipeline_documents (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure documents table: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Msg("Connected to Postgres document store")

	return &PGStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() {
	s.pool.Close()
}

// Health checks database connectivity.
func (s *PGStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("document store health check failed: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *PGStore) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM pipeline_documents WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// WriteIfAbsent implements Store using ON CONFLICT DO NOTHING, so the first
// writer wins at the database level.
func (s *PGStore) WriteIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_documents (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		key, value,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Overwrite implements Store.
func (s *PGStore) Overwrite(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_documents (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// List implements Store.
func (s *PGStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM pipeline_documents WHERE key LIKE $1 || '%'`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys under %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys under %q: %w", prefix, err)
	}
	return keys, nil
}

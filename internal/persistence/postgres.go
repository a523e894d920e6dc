package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/config"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool when DSN is provided.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping database connection")
		return &Postgres{Pool: nil}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.Pool.Ping(ctx)
}

// PostgresKV stores a namespace as rows of the session_kv table.
type PostgresKV struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresKV returns a namespace backed by the session_kv table.
func NewPostgresKV(pool *pgxpool.Pool, namespace string) *PostgresKV {
	return &PostgresKV{pool: pool, namespace: namespace}
}

func (s *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM session_kv WHERE namespace=$1 AND key=$2`

	var value string
	if err := s.pool.QueryRow(ctx, query, s.namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresKV) Set(ctx context.Context, key, value string) error {
	const query = `
        INSERT INTO session_kv (namespace, key, value)
        VALUES ($1, $2, $3)
        ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`

	_, err := s.pool.Exec(ctx, query, s.namespace, key, value)
	return err
}

func (s *PostgresKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM session_kv WHERE namespace=$1 AND key = ANY($2)`

	_, err := s.pool.Exec(ctx, query, s.namespace, keys)
	return err
}

func (s *PostgresKV) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

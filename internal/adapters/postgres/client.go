package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"seasoncast/internal/adapters/config"
	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

const connectTimeout = 5 * time.Second

// Client owns the connection pool behind the prediction history
type Client struct {
	db *sqlx.DB
}

// NewClient opens the pool and verifies the server answers.
// History writes are single-row inserts, so a small idle floor is enough.
func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}

	maxConns := max(cfg.MaxConns, 1)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(maxConns/4, 2))
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "postgres %s:%d unreachable", cfg.Host, cfg.Port)
	}

	logger.Get().Component("postgres").Infow("Connected",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", maxConns,
	)
	return &Client{db: db}, nil
}

// DB returns the pool
func (c *Client) DB() *sqlx.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Health pings the server; used by the readiness check
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Package wrds fetches CRSP and Markit tables from the WRDS PostgreSQL
// service. Queries are read-only and scoped to an explicit date range; the
// caller owns adjustment and persistence.
package wrds

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds WRDS connection settings.
type Config struct {
	Username string
	Password string
	Host     string // default wrds-pgdata.wharton.upenn.edu
	Port     int    // default 9737
	Database string // default wrds
}

// withDefaults fills in the standard WRDS endpoint.
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "wrds-pgdata.wharton.upenn.edu"
	}
	if c.Port == 0 {
		c.Port = 9737
	}
	if c.Database == "" {
		c.Database = "wrds"
	}
	return c
}

// DSN builds the connection string. WRDS requires TLS.
func (c Config) DSN() string {
	c = c.withDefaults()
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=require",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Database)
}

// Client wraps a pgx pool connected to WRDS.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient creates a new WRDS client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	return NewClientDSN(ctx, cfg.DSN())
}

// NewClientDSN creates a new client from a raw DSN. Tests use it to point the
// client at a local database.
func NewClientDSN(ctx context.Context, dsn string) (*Client, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse wrds dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to wrds: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping wrds: %w", err)
	}

	return &Client{pool: pool}, nil
}

// Close closes the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

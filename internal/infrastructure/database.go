// Package infrastructure provides database and connection pool setup.
//
// Two backends share one sqlx handle type:
//   - sqlite: a local file (desktop build, tests) opened through modernc.org/sqlite.
//   - postgres: a pgxpool shared by sqlx (via stdlib.OpenDBFromPool) and River.
//
// Import Path: sphincs.io/sphincs/internal/infrastructure
package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/repository"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// DatabaseClients contains all database-related clients.
//
// Coding Standard: in postgres mode sqlx and River share Pool. Do not open a
// second sql.DB against the same DSN.
type DatabaseClients struct {
	// Driver is config.DriverSQLite or config.DriverPostgres.
	Driver string

	// DB is the sqlx handle every repository uses.
	DB *sqlx.DB

	// Pool is the shared pgx pool; nil in sqlite mode.
	Pool *pgxpool.Pool

	// RiverClient is the job queue client; nil until InitRiverClient and
	// always nil in sqlite mode.
	RiverClient *river.Client[pgx.Tx]
}

// NewDatabaseClients opens the configured backend.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	if cfg.IsPostgres() {
		return newPostgresClients(ctx, cfg)
	}

	db, err := OpenSQLite(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("SQLite database opened", zap.String("path", cfg.Path))
	return &DatabaseClients{Driver: config.DriverSQLite, DB: db}, nil
}

// OpenSQLite opens (or creates) a SQLite database at path. Timestamps are
// written in SQLite's own text format so they sort and parse consistently.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	params := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_time_format=sqlite",
	}
	memory := path == MemoryPath
	if !memory {
		params = append(params, "_pragma=journal_mode(WAL)")
	}

	db, err := sqlx.Open("sqlite", path+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// Every in-memory connection is a separate database.
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func newPostgresClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// sqlx rides on the same pool instead of opening its own connections.
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return &DatabaseClients{
		Driver: config.DriverPostgres,
		DB:     db,
		Pool:   pool,
	}, nil
}

// AutoMigrate applies the alerting schema and, in postgres mode, River's
// queue tables.
func (c *DatabaseClients) AutoMigrate(ctx context.Context) error {
	if err := repository.Migrate(ctx, c.DB); err != nil {
		return fmt.Errorf("schema migrate: %w", err)
	}
	if c.Pool == nil {
		return nil
	}

	logger.Info("Running River migration...")
	migrator, err := rivermigrate.New(riverpgxv5.New(c.Pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	if len(res.Versions) > 0 {
		logger.Info("River migration completed",
			zap.Int("versions_applied", len(res.Versions)),
		)
	} else {
		logger.Info("River migration: already up-to-date")
	}
	return nil
}

// InitRiverClient creates a River client with registered workers.
// It is a no-op in sqlite mode, where on-demand scans run on the worker pool.
func (c *DatabaseClients) InitRiverClient(workers *river.Workers, cfg config.RiverConfig) error {
	if c.Pool == nil {
		return nil
	}
	riverClient, err := river.NewClient(riverpgxv5.New(c.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:                     workers,
		CompletedJobRetentionPeriod: cfg.CompletedJobRetentionPeriod,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	c.RiverClient = riverClient
	logger.Info("River client initialized", zap.Int("max_workers", cfg.MaxWorkers))
	return nil
}

// Close closes all connection pools gracefully.
func (c *DatabaseClients) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/infrastructure"
	"sphincs.io/sphincs/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func sqliteConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			Path:        infrastructure.MemoryPath,
			AutoMigrate: true,
		},
		Log:     config.LogConfig{Level: "error", Format: "json"},
		Worker:  config.WorkerConfig{GeneralPoolSize: 4, BackgroundPoolSize: 4},
		Scanner: config.ScannerConfig{Interval: time.Minute},
		Security: config.SecurityConfig{
			JWTSecret: strings.Repeat("s", 32),
			JWTIssuer: "sphincs",
			TokenTTL:  time.Hour,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Bus:     config.BusConfig{SubscriberQueueSize: 16},
	}
}

func newSQLiteApp(t *testing.T) *Application {
	t.Helper()
	app, err := Bootstrap(context.Background(), sqliteConfig())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	return app
}

func TestBootstrap_NoDB(t *testing.T) {
	// Bootstrap without a real database should fail at DB connection.
	cfg := sqliteConfig()
	cfg.Database = config.DatabaseConfig{
		Driver:   config.DriverPostgres,
		Host:     "localhost",
		Port:     65432, // Non-existent port
		User:     "test",
		Password: "test",
		Database: "test",
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}

	ctx := context.Background()
	app, err := Bootstrap(ctx, cfg)
	require.Error(t, err, "Bootstrap should fail without database")
	assert.Nil(t, app, "Application should be nil on bootstrap failure")
}

func TestBootstrap_SQLite(t *testing.T) {
	app := newSQLiteApp(t)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Notification)
	assert.NotNil(t, app.Scanner)
	assert.Nil(t, app.DB.RiverClient, "sqlite mode runs without River")
	assert.Len(t, app.Modules, 2)
}

func TestApplication_StartAndShutdown(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Scanner.Enabled = true
	app, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, app.Start(context.Background()))
	assert.NotPanics(t, app.Shutdown)
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	// Shutdown on empty application should not panic.
	app := &Application{}

	assert.NotPanics(t, func() {
		app.Shutdown()
	}, "Shutdown on empty Application should not panic")
}

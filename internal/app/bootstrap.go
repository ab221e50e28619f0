// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"sphincs.io/sphincs/internal/api/handlers"
	"sphincs.io/sphincs/internal/app/modules"
	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/governance/audit"
	"sphincs.io/sphincs/internal/infrastructure"
	"sphincs.io/sphincs/internal/metrics"
	"sphincs.io/sphincs/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config       *config.Config
	Router       *gin.Engine
	DB           *infrastructure.DatabaseClients
	Pools        *worker.Pools
	Modules      []modules.Module
	Notification *modules.NotificationModule
	Scanner      *modules.ScannerModule
	Audit        *audit.Logger

	infra *modules.Infrastructure
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	app, err := Compose(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	server := handlers.NewServer(modules.NewServerDeps(app.infra, app.Modules))
	app.Router = newRouter(cfg, server, JWTConfig(cfg.Security))
	return app, nil
}

// Compose builds the store, worker pools and domain modules without the HTTP
// layer. sphincsctl uses it directly.
func Compose(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	notif, err := modules.NewNotificationModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init notification module: %w", err)
	}
	scan := modules.NewScannerModule(infra, notif.Center())
	allModules := []modules.Module{notif, scan}

	workers := river.NewWorkers()
	for _, mod := range allModules {
		mod.RegisterWorkers(workers)
	}
	if err := infra.InitRiver(workers); err != nil {
		_ = notif.Shutdown(ctx)
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	return &Application{
		Config:       cfg,
		DB:           infra.DB,
		Pools:        infra.Pools,
		Modules:      allModules,
		Notification: notif,
		Scanner:      scan,
		Audit:        infra.Audit,
		infra:        infra,
	}, nil
}

package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"

	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/governance/audit"
	"sphincs.io/sphincs/internal/infrastructure"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/pkg/worker"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	DB     *infrastructure.DatabaseClients
	Pools  *worker.Pools
	Bus    *notification.Broadcaster
	Audit  *audit.Logger
}

// NewInfrastructure initializes DB, worker pools, the event bus and the
// audit log.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Alert schema + River queue tables.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:    cfg.Worker.GeneralPoolSize,
		BackgroundPoolSize: cfg.Worker.BackgroundPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	return &Infrastructure{
		Config: cfg,
		DB:     db,
		Pools:  pools,
		Bus:    notification.NewBroadcaster(cfg.Bus.SubscriberQueueSize),
		Audit:  audit.NewLogger(db.DB),
	}, nil
}

// InitRiver initializes River client on top of a prepared worker registry.
// In sqlite mode no client is created.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}

package modules

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/riverqueue/river"

	"sphincs.io/sphincs/internal/api/handlers"
	"sphincs.io/sphincs/internal/jobs"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/pkg/worker"
	"sphincs.io/sphincs/internal/repository"
	"sphincs.io/sphincs/internal/scanner"
)

// ScannerModule wires the periodic condition scanner, the on-demand scan
// worker and its dispatcher.
type ScannerModule struct {
	infra   *Infrastructure
	scanner *scanner.Scanner
	started atomic.Bool
}

// NewScannerModule creates a scanner module over center.
func NewScannerModule(infra *Infrastructure, center *notification.Center) *ScannerModule {
	cfg := infra.Config.Scanner
	sc := scanner.New(
		repository.NewConditionRepository(infra.DB.DB),
		center,
		scanner.Config{Interval: cfg.Interval, PendingOrderWindow: cfg.PendingOrderWindow},
	)
	return &ScannerModule{infra: infra, scanner: sc}
}

func (m *ScannerModule) Name() string { return "scanner" }

// Scanner returns the condition scanner.
func (m *ScannerModule) Scanner() *scanner.Scanner { return m.scanner }

// Dispatcher returns the on-demand scan dispatcher. Call after InitRiver so
// PostgreSQL deployments queue through River.
func (m *ScannerModule) Dispatcher() *jobs.Dispatcher {
	var queue jobs.Inserter
	if m.infra.DB != nil && m.infra.DB.RiverClient != nil {
		queue = m.infra.DB.RiverClient
	}
	return jobs.NewDispatcher(queue, m.infra.Pools, m.scanner)
}

func (m *ScannerModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Scans = m.Dispatcher()
}

func (m *ScannerModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil {
		return
	}
	river.AddWorker(workers, jobs.NewScanWorker(m.scanner))
}

// Start launches the periodic loop when the scanner is enabled.
func (m *ScannerModule) Start(context.Context) error {
	if !m.infra.Config.Scanner.Enabled {
		logger.Info("condition scanner disabled")
		return nil
	}
	if err := m.infra.Pools.SubmitDetached(worker.PoolBackground, m.scanner.Run); err != nil {
		return fmt.Errorf("start condition scanner: %w", err)
	}
	m.started.Store(true)
	return nil
}

// Shutdown stops the loop and waits for the running cycle to finish.
func (m *ScannerModule) Shutdown(ctx context.Context) error {
	m.scanner.Stop()
	if !m.started.Load() {
		return nil
	}
	select {
	case <-m.scanner.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

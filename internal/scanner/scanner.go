// Package scanner derives alerts from business state.
//
// A Scanner runs a fixed sequence of passes per cycle. Each pass lists the
// entities currently matching its condition, emits a deduplicated alert per
// entity and then resolves every unread alert of its source types whose
// entity no longer matches. Passes are isolated: an error or panic in one is
// logged and counted, and the remaining passes still run.
//
// Import Path: sphincs.io/sphincs/internal/scanner
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/metrics"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// Interval bounds and defaults.
const (
	MinInterval               = 15 * time.Second
	DefaultInterval           = 30 * time.Second
	DefaultPendingOrderWindow = 5 * time.Minute

	sleepSlice = 500 * time.Millisecond
)

// Pass names, in run order.
const (
	PassLowStock      = "low_stock"
	PassExpiry        = "expiry"
	PassMaintenance   = "maintenance"
	PassAudits        = "audits"
	PassIncidents     = "incidents"
	PassPendingOrders = "pending_orders"
)

// Source is read access to the business records the passes inspect.
type Source interface {
	LowStock(ctx context.Context) ([]domain.StockLevel, error)
	StockedBatches(ctx context.Context) ([]domain.ExpiryBatch, error)
	MarkBatchExpired(ctx context.Context, batchID int64) (bool, error)
	OpenMaintenance(ctx context.Context) ([]domain.MaintenanceTask, error)
	OpenAudits(ctx context.Context) ([]domain.QualityAudit, error)
	ActiveIncidents(ctx context.Context) ([]domain.SafetyIncident, error)
	PendingOrders(ctx context.Context) ([]domain.PendingOrder, error)
}

// Alerter is the part of the notification center the scanner drives.
type Alerter interface {
	Now() time.Time
	Emit(ctx context.Context, p notification.EmitParams) *domain.Alert
	ResolveForSource(ctx context.Context, sourceType string, sourceID int64) int
	UnreadSourceIDs(ctx context.Context, sourceType string) []int64
}

// Config tunes a Scanner. Zero values take the defaults; an interval below
// MinInterval is raised to it.
type Config struct {
	Interval           time.Duration
	PendingOrderWindow time.Duration
}

// PassReport is the outcome of one pass.
type PassReport struct {
	Name     string        `json:"name"`
	Matched  int           `json:"matched"`
	Resolved int           `json:"resolved"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// CycleReport is the outcome of one full cycle.
type CycleReport struct {
	StartedAt time.Time    `json:"started_at"`
	Passes    []PassReport `json:"passes"`
}

// Failed returns the passes that did not complete.
func (r CycleReport) Failed() []PassReport {
	var out []PassReport
	for _, p := range r.Passes {
		if p.Error != "" {
			out = append(out, p)
		}
	}
	return out
}

// active is the set of matching entity ids per source type.
type active map[string]map[int64]struct{}

func (a active) add(sourceType string, id int64) {
	ids, ok := a[sourceType]
	if !ok {
		ids = make(map[int64]struct{})
		a[sourceType] = ids
	}
	ids[id] = struct{}{}
}

type pass struct {
	name        string
	sourceTypes []string
	run         func(ctx context.Context, now time.Time, found active) error
}

// Scanner is the periodic condition scanner.
type Scanner struct {
	src      Source
	alerts   Alerter
	interval time.Duration
	window   time.Duration
	passes   []pass

	// cycleMu keeps an on-demand cycle from overlapping the periodic one.
	cycleMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a scanner.
func New(src Source, alerts Alerter, cfg Config) *Scanner {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		logger.Warn("scanner interval below minimum; raising",
			zap.Duration("requested", cfg.Interval),
			zap.Duration("min", MinInterval),
		)
		interval = MinInterval
	}
	window := cfg.PendingOrderWindow
	if window <= 0 {
		window = DefaultPendingOrderWindow
	}

	s := &Scanner{
		src:      src,
		alerts:   alerts,
		interval: interval,
		window:   window,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.passes = []pass{
		{PassLowStock, []string{domain.SourceInventoryLow}, s.scanLowStock},
		{PassExpiry, []string{domain.SourceInventoryExpired, domain.SourceInventoryExpiring}, s.scanExpiry},
		{PassMaintenance, []string{domain.SourceMaintenanceTask}, s.scanMaintenance},
		{PassAudits, []string{domain.SourceQualityAudit}, s.scanAudits},
		{PassIncidents, []string{domain.SourceSafetyIncident}, s.scanIncidents},
		{PassPendingOrders, []string{domain.SourcePendingOrder}, s.scanPendingOrders},
	}
	return s
}

// Interval returns the effective polling interval.
func (s *Scanner) Interval() time.Duration { return s.interval }

// Run scans once immediately and then every interval until ctx is done or
// Stop is called. Shutdown latency is bounded by one sleep slice plus the
// cycle in flight.
func (s *Scanner) Run(ctx context.Context) {
	defer close(s.done)
	logger.Info("condition scanner started", zap.Duration("interval", s.interval))
	defer logger.Info("condition scanner stopped")

	for {
		s.RunCycle(ctx)
		if !s.sleep(ctx) {
			return
		}
	}
}

// Stop asks Run to return. It does not wait; use Done for that.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed when Run returns.
func (s *Scanner) Done() <-chan struct{} { return s.done }

func (s *Scanner) sleep(ctx context.Context) bool {
	deadline := time.Now().Add(s.interval)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.stop:
			return false
		case <-time.After(slice):
		}
	}
}

// RunCycle runs every pass once and returns what each did.
func (s *Scanner) RunCycle(ctx context.Context) CycleReport {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	now := s.alerts.Now()
	report := CycleReport{StartedAt: now, Passes: make([]PassReport, 0, len(s.passes))}
	for _, p := range s.passes {
		if ctx.Err() != nil {
			break
		}
		report.Passes = append(report.Passes, s.runPass(ctx, p, now))
	}

	if failed := report.Failed(); len(failed) > 0 {
		logger.Warn("scanner cycle finished with failures", zap.Int("failed_passes", len(failed)))
	}
	return report
}

func (s *Scanner) runPass(ctx context.Context, p pass, now time.Time) (rep PassReport) {
	rep.Name = p.name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rep.Error = fmt.Sprintf("panic: %v", r)
		}
		rep.Duration = time.Since(start)
		metrics.ScanPassDuration.WithLabelValues(p.name).Observe(rep.Duration.Seconds())
		if rep.Error != "" {
			metrics.ScanPassFailures.WithLabelValues(p.name).Inc()
			logger.Error("scanner pass failed",
				zap.String("pass", p.name),
				zap.String("error", rep.Error),
			)
		}
	}()

	found := make(active)
	if err := p.run(ctx, now, found); err != nil {
		// Without a complete match set nothing can be safely resolved.
		rep.Error = err.Error()
		return rep
	}
	for _, ids := range found {
		rep.Matched += len(ids)
	}
	for _, st := range p.sourceTypes {
		rep.Resolved += s.clear(ctx, st, found[st])
	}
	return rep
}

// clear resolves unread alerts of sourceType whose entity is not in current.
func (s *Scanner) clear(ctx context.Context, sourceType string, current map[int64]struct{}) int {
	resolved := 0
	for _, id := range s.alerts.UnreadSourceIDs(ctx, sourceType) {
		if _, ok := current[id]; ok {
			continue
		}
		resolved += s.alerts.ResolveForSource(ctx, sourceType, id)
	}
	return resolved
}

func (s *Scanner) scanLowStock(ctx context.Context, _ time.Time, found active) error {
	items, err := s.src.LowStock(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if !item.Low() {
			continue
		}
		s.alerts.Emit(ctx, notification.LowStockAlert(item))
		found.add(domain.SourceInventoryLow, item.ItemID)
	}
	return nil
}

func (s *Scanner) scanExpiry(ctx context.Context, now time.Time, found active) error {
	batches, err := s.src.StockedBatches(ctx)
	if err != nil {
		return err
	}
	for _, b := range batches {
		switch {
		case b.Expired(now):
			s.alerts.Emit(ctx, notification.ExpiredBatchAlert(b))
			found.add(domain.SourceInventoryExpired, b.BatchID)
			if !b.IsExpired {
				if _, err := s.src.MarkBatchExpired(ctx, b.BatchID); err != nil {
					return fmt.Errorf("flag batch %d expired: %w", b.BatchID, err)
				}
			}
		case b.ExpiringSoon(now):
			s.alerts.Emit(ctx, notification.ExpiringBatchAlert(b, now))
			found.add(domain.SourceInventoryExpiring, b.BatchID)
		}
	}
	return nil
}

func (s *Scanner) scanMaintenance(ctx context.Context, now time.Time, found active) error {
	tasks, err := s.src.OpenMaintenance(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !t.Overdue(now) {
			continue
		}
		s.alerts.Emit(ctx, notification.OverdueMaintenanceAlert(t))
		found.add(domain.SourceMaintenanceTask, t.TaskID)
	}
	return nil
}

func (s *Scanner) scanAudits(ctx context.Context, now time.Time, found active) error {
	audits, err := s.src.OpenAudits(ctx)
	if err != nil {
		return err
	}
	for _, a := range audits {
		if !a.Due(now) {
			continue
		}
		s.alerts.Emit(ctx, notification.AuditFollowUpAlert(a))
		found.add(domain.SourceQualityAudit, a.AuditID)
	}
	return nil
}

func (s *Scanner) scanIncidents(ctx context.Context, _ time.Time, found active) error {
	incidents, err := s.src.ActiveIncidents(ctx)
	if err != nil {
		return err
	}
	for _, i := range incidents {
		if !i.Active() {
			continue
		}
		s.alerts.Emit(ctx, notification.IncidentAlert(i))
		found.add(domain.SourceSafetyIncident, i.IncidentID)
	}
	return nil
}

func (s *Scanner) scanPendingOrders(ctx context.Context, now time.Time, found active) error {
	orders, err := s.src.PendingOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if !o.Recent(now, s.window) {
			continue
		}
		s.alerts.Emit(ctx, notification.PendingOrderAlert(o))
		found.add(domain.SourcePendingOrder, o.OrderID)
	}
	return nil
}

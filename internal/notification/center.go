// Package notification implements the Sphincs alerting core.
//
// Center is the single entry point for alert creation and lifecycle. It
// persists through an AlertStore, deduplicates on unread (module, source),
// and broadcasts changes to in-process subscribers (desk panel, relay).
// Center never returns errors to business callers: alerting is a side effect
// of business operations and must not abort them, so failures are logged and
// surface as nil / false / 0. The *Checked variants report the store error
// instead, for the API surfaces that must tell a client the request failed.
//
// Import Path: sphincs.io/sphincs/internal/notification
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/metrics"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// ErrSubscriptionClosed is returned by Subscription.Next after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// AlertStore is the persistence the center needs.
type AlertStore interface {
	Insert(ctx context.Context, a *domain.Alert) error
	FindUnreadBySource(ctx context.Context, module domain.Module, sourceType string, sourceID int64) (*domain.Alert, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Alert, error)
	ListRecentForUser(ctx context.Context, userID int64, limit int) ([]domain.Alert, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (changed, found bool, err error)
	MarkManyRead(ctx context.Context, ids []int64, at time.Time) (int, error)
	MarkAllRead(ctx context.Context, at time.Time) (int, error)
	ResolveBySource(ctx context.Context, sourceType string, sourceID int64, at time.Time) (int, error)
	UnreadSourceIDs(ctx context.Context, sourceType string) ([]int64, error)
}

// EmitParams describes one alert to raise.
type EmitParams struct {
	Module   domain.Module
	Title    string
	Message  string
	Severity domain.Severity
	// Source ties the alert to a business entity; required for dedup and
	// auto-resolution.
	Source  *domain.Source
	Payload map[string]any
	// TargetUserID restricts the alert to one user; nil broadcasts.
	TargetUserID *int64
	// AllowDuplicate skips the unread-source lookup.
	AllowDuplicate bool
}

// Center is the notification center. One instance per running application,
// constructed by the composition root and passed to its consumers.
type Center struct {
	store AlertStore
	bus   *Broadcaster
	clock Clock
}

// NewCenter creates a notification center. bus may be nil, in which case a
// default-sized broadcaster is created.
func NewCenter(store AlertStore, bus *Broadcaster, clock Clock) *Center {
	if bus == nil {
		bus = NewBroadcaster(DefaultQueueSize)
	}
	return &Center{store: store, bus: bus, clock: clock}
}

// Now returns the center's notion of the current time.
func (c *Center) Now() time.Time { return c.clock.now() }

// Subscribe registers a subscriber for created / updated / refresh events.
func (c *Center) Subscribe(name string) *Subscription {
	return c.bus.Subscribe(name)
}

// Emit raises an alert. With a source and without AllowDuplicate, an
// existing unread alert for the same module and source is returned unchanged
// and nothing is broadcast. Returns nil when the alert could not be stored.
func (c *Center) Emit(ctx context.Context, p EmitParams) *domain.Alert {
	if strings.TrimSpace(p.Title) == "" {
		logger.Warn("alert emit rejected: empty title", zap.String("module", string(p.Module)))
		metrics.CenterFailures.WithLabelValues("emit").Inc()
		return nil
	}
	severity := p.Severity
	if !severity.Valid() {
		logger.Warn("alert emit with unknown severity; using info",
			zap.String("module", string(p.Module)),
			zap.String("severity", string(p.Severity)),
		)
		severity = domain.SeverityInfo
	}

	if p.Source != nil && !p.AllowDuplicate {
		existing, err := c.store.FindUnreadBySource(ctx, p.Module, p.Source.Type, p.Source.ID)
		if err != nil {
			c.fail("emit", err,
				zap.String("module", string(p.Module)),
				zap.String("source_type", p.Source.Type),
				zap.Int64("source_id", p.Source.ID),
			)
			return nil
		}
		if existing != nil {
			metrics.AlertsDeduplicated.WithLabelValues(string(p.Module)).Inc()
			return existing
		}
	}

	alert := &domain.Alert{
		Module:         p.Module,
		Title:          p.Title,
		Message:        p.Message,
		Severity:       severity,
		Source:         p.Source,
		Payload:        p.Payload,
		TriggeredAt:    c.Now(),
		NotifiedUserID: p.TargetUserID,
	}
	if err := c.store.Insert(ctx, alert); err != nil {
		c.fail("emit", err,
			zap.String("module", string(p.Module)),
			zap.String("title", p.Title),
		)
		return nil
	}

	metrics.AlertsEmitted.WithLabelValues(string(alert.Module), string(alert.Severity)).Inc()
	logger.Debug("alert emitted",
		zap.Int64("alert_id", alert.ID),
		zap.String("module", string(alert.Module)),
		zap.String("severity", string(alert.Severity)),
	)

	snapshot := *alert
	c.bus.Publish(domain.Event{Type: domain.EventAlertCreated, Alert: &snapshot, At: alert.TriggeredAt})
	return alert
}

// ListRecent returns up to limit alerts, newest first.
func (c *Center) ListRecent(ctx context.Context, limit int) []domain.Alert {
	alerts, err := c.store.ListRecent(ctx, normalizeLimit(limit))
	if err != nil {
		c.fail("list_recent", err)
		return nil
	}
	return alerts
}

// ListRecentForUser returns up to limit broadcast alerts and alerts targeted
// at userID, newest first.
func (c *Center) ListRecentForUser(ctx context.Context, userID int64, limit int) []domain.Alert {
	alerts, err := c.ListRecentForUserChecked(ctx, userID, limit)
	if err != nil {
		c.logFailure("list_recent", err, zap.Int64("user_id", userID))
		return nil
	}
	return alerts
}

// ListRecentForUserChecked is ListRecentForUser reporting store failures.
func (c *Center) ListRecentForUserChecked(ctx context.Context, userID int64, limit int) ([]domain.Alert, error) {
	alerts, err := c.store.ListRecentForUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		c.count("list_recent")
		return nil, fmt.Errorf("list alerts for user %d: %w", userID, err)
	}
	return alerts, nil
}

// CountUnread returns the number of unread alerts, or 0 on failure.
func (c *Center) CountUnread(ctx context.Context) int {
	n, err := c.CountUnreadChecked(ctx)
	if err != nil {
		c.logFailure("count_unread", err)
		return 0
	}
	return n
}

// CountUnreadChecked is CountUnread reporting store failures.
func (c *Center) CountUnreadChecked(ctx context.Context) (int, error) {
	n, err := c.store.CountUnread(ctx)
	if err != nil {
		c.count("count_unread")
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return n, nil
}

// MarkRead marks one alert read. Marking an already read alert returns true
// and leaves read_at alone; an unknown id returns false.
func (c *Center) MarkRead(ctx context.Context, id int64) bool {
	now := c.Now()
	changed, found, err := c.store.MarkRead(ctx, id, now)
	if err != nil {
		c.fail("mark_read", err, zap.Int64("alert_id", id))
		return false
	}
	if !found {
		return false
	}
	if changed {
		c.bus.Publish(domain.Event{
			Type:  domain.EventAlertUpdated,
			Alert: &domain.Alert{ID: id, IsRead: true, ReadAt: &now},
			At:    now,
		})
	}
	return true
}

// MarkManyRead marks every unread alert in ids read and returns how many
// changed.
func (c *Center) MarkManyRead(ctx context.Context, ids []int64) int {
	n, err := c.MarkManyReadChecked(ctx, ids)
	if err != nil {
		c.logFailure("mark_many_read", err, zap.Int("ids", len(ids)))
		return 0
	}
	return n
}

// MarkManyReadChecked is MarkManyRead reporting store failures.
func (c *Center) MarkManyReadChecked(ctx context.Context, ids []int64) (int, error) {
	now := c.Now()
	n, err := c.store.MarkManyRead(ctx, ids, now)
	if err != nil {
		c.count("mark_many_read")
		return 0, fmt.Errorf("mark %d alert(s) read: %w", len(ids), err)
	}
	c.refresh(n, now)
	return n, nil
}

// MarkAllRead marks every unread alert read and returns how many changed.
func (c *Center) MarkAllRead(ctx context.Context) int {
	n, err := c.MarkAllReadChecked(ctx)
	if err != nil {
		c.logFailure("mark_all_read", err)
		return 0
	}
	return n
}

// MarkAllReadChecked is MarkAllRead reporting store failures.
func (c *Center) MarkAllReadChecked(ctx context.Context) (int, error) {
	now := c.Now()
	n, err := c.store.MarkAllRead(ctx, now)
	if err != nil {
		c.count("mark_all_read")
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	c.refresh(n, now)
	return n, nil
}

// ResolveForSource marks every unread alert for the source read. It is used
// when the condition behind the alert no longer holds.
func (c *Center) ResolveForSource(ctx context.Context, sourceType string, sourceID int64) int {
	now := c.Now()
	n, err := c.store.ResolveBySource(ctx, sourceType, sourceID, now)
	if err != nil {
		c.fail("resolve", err,
			zap.String("source_type", sourceType),
			zap.Int64("source_id", sourceID),
		)
		return 0
	}
	if n > 0 {
		metrics.AlertsResolved.WithLabelValues(sourceType).Add(float64(n))
		logger.Debug("alerts resolved",
			zap.String("source_type", sourceType),
			zap.Int64("source_id", sourceID),
			zap.Int("count", n),
		)
	}
	c.refresh(n, now)
	return n
}

// UnreadSourceIDs lists source ids of sourceType that still have an unread
// alert. Returns nil on failure.
func (c *Center) UnreadSourceIDs(ctx context.Context, sourceType string) []int64 {
	ids, err := c.store.UnreadSourceIDs(ctx, sourceType)
	if err != nil {
		c.fail("unread_sources", err, zap.String("source_type", sourceType))
		return nil
	}
	return ids
}

func (c *Center) refresh(changed int, at time.Time) {
	if changed <= 0 {
		return
	}
	c.bus.Publish(domain.Event{Type: domain.EventAlertsRefresh, Count: changed, At: at})
}

func (c *Center) fail(op string, err error, fields ...zap.Field) {
	c.count(op)
	c.logFailure(op, err, fields...)
}

func (c *Center) count(op string) {
	metrics.CenterFailures.WithLabelValues(op).Inc()
}

func (c *Center) logFailure(op string, err error, fields ...zap.Field) {
	logger.Error("notification center "+op+" failed", append(fields, zap.Error(err))...)
}

// Default and maximum list sizes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/api/handlers"
	"sphincs.io/sphincs/internal/notification"
	"sphincs.io/sphincs/internal/notification/relay"
	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/pkg/worker"
	"sphincs.io/sphincs/internal/repository"
)

// NotificationModule wires the notification center, preferences, business
// triggers and the optional Kafka relay.
type NotificationModule struct {
	infra    *Infrastructure
	alerts   *repository.AlertRepository
	center   *notification.Center
	prefs    *notification.Preferences
	filter   *notification.Filter
	triggers *notification.Triggers
	relay    *relay.Relay
}

// NewNotificationModule creates the notification module. The relay producer
// connects to Kafka here, so a broker outage fails bootstrap when the relay
// is enabled.
func NewNotificationModule(infra *Infrastructure) (*NotificationModule, error) {
	if infra == nil || infra.DB == nil || infra.DB.DB == nil || infra.Bus == nil {
		return nil, fmt.Errorf("notification module requires a database and event bus")
	}

	alerts := repository.NewAlertRepository(infra.DB.DB)
	center := notification.NewCenter(alerts, infra.Bus, nil)
	prefs := notification.NewPreferences(repository.NewPreferenceRepository(infra.DB.DB), nil)

	m := &NotificationModule{
		infra:    infra,
		alerts:   alerts,
		center:   center,
		prefs:    prefs,
		filter:   notification.NewFilter(prefs),
		triggers: notification.NewTriggers(center),
	}

	if kafka := infra.Config.Kafka; kafka.Enabled {
		producer, err := relay.NewProducer(kafka)
		if err != nil {
			return nil, fmt.Errorf("init kafka relay: %w", err)
		}
		m.relay = relay.New(producer, kafka.Topic, center.Subscribe(relay.SubscriberName))
	}
	return m, nil
}

func (m *NotificationModule) Name() string { return "notification" }

// Center returns the notification center.
func (m *NotificationModule) Center() *notification.Center { return m.center }

// Preferences returns the preference service.
func (m *NotificationModule) Preferences() *notification.Preferences { return m.prefs }

// Filter returns the per-user delivery filter.
func (m *NotificationModule) Filter() *notification.Filter { return m.filter }

// Triggers returns the business trigger hooks.
func (m *NotificationModule) Triggers() *notification.Triggers { return m.triggers }

func (m *NotificationModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Center = m.center
	deps.Preferences = m.prefs
	deps.Filter = m.filter
	deps.Alerts = m.alerts
}

func (m *NotificationModule) RegisterWorkers(_ *river.Workers) {}

// Start runs the relay pump, if configured.
func (m *NotificationModule) Start(context.Context) error {
	if m.relay == nil {
		return nil
	}
	if err := m.infra.Pools.SubmitDetached(worker.PoolBackground, m.relay.Run); err != nil {
		return fmt.Errorf("start kafka relay: %w", err)
	}
	return nil
}

func (m *NotificationModule) Shutdown(context.Context) error {
	if m.relay == nil {
		return nil
	}
	if err := m.relay.Close(); err != nil {
		logger.Warn("kafka producer close failed", zap.Error(err))
		return err
	}
	return nil
}

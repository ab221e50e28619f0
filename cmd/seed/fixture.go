package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/pkg/logger"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

// fixture is the YAML document loaded by the seeder. Durations are relative
// to the moment the seeder runs so the demo always shows live conditions.
type fixture struct {
	Inventory   []stockFixture       `yaml:"inventory"`
	Batches     []batchFixture       `yaml:"batches"`
	Maintenance []maintenanceFixture `yaml:"maintenance"`
	Audits      []auditFixture       `yaml:"audits"`
	Incidents   []incidentFixture    `yaml:"incidents"`
	Orders      []orderFixture       `yaml:"orders"`
}

type stockFixture struct {
	Name         string  `yaml:"name"`
	Quantity     float64 `yaml:"quantity"`
	ReorderLevel float64 `yaml:"reorder_level"`
	Unit         string  `yaml:"unit"`
}

type batchFixture struct {
	Item            string  `yaml:"item"`
	Quantity        float64 `yaml:"quantity"`
	ExpiresInDays   int     `yaml:"expires_in_days"`
	AlertDaysBefore int     `yaml:"alert_days_before"`
}

type maintenanceFixture struct {
	Title      string `yaml:"title"`
	Equipment  string `yaml:"equipment"`
	Status     string `yaml:"status"`
	DueInHours int    `yaml:"due_in_hours"`
}

type auditFixture struct {
	Title          string `yaml:"title"`
	Status         string `yaml:"status"`
	FollowUpInDays int    `yaml:"follow_up_in_days"`
}

type incidentFixture struct {
	Title            string `yaml:"title"`
	Severity         string `yaml:"severity"`
	Status           string `yaml:"status"`
	ReportedHoursAgo int    `yaml:"reported_hours_ago"`
}

type orderFixture struct {
	Number     string  `yaml:"number"`
	Total      float64 `yaml:"total"`
	Status     string  `yaml:"status"`
	AgeMinutes int     `yaml:"age_minutes"`
}

// loadFixture reads path, or the embedded demo data when path is empty.
func loadFixture(path string) (*fixture, error) {
	data := demoFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", path, err)
		}
		data = b
	}
	return parseFixture(data)
}

func parseFixture(data []byte) (*fixture, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *fixture) validate() error {
	var errs []error
	for i, s := range fx.Inventory {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("inventory[%d]: name is required", i))
		}
	}
	for i, b := range fx.Batches {
		if strings.TrimSpace(b.Item) == "" {
			errs = append(errs, fmt.Errorf("batches[%d]: item is required", i))
		}
		if b.AlertDaysBefore < 0 {
			errs = append(errs, fmt.Errorf("batches[%d]: alert_days_before must not be negative", i))
		}
	}
	for i, m := range fx.Maintenance {
		if !oneOf(m.Status, domain.MaintenanceOpen, domain.MaintenanceInProgress, domain.MaintenanceDone) {
			errs = append(errs, fmt.Errorf("maintenance[%d]: unknown status %q", i, m.Status))
		}
	}
	for i, a := range fx.Audits {
		if !oneOf(a.Status, domain.AuditOpen, domain.AuditInProgress, domain.AuditResolved, domain.AuditClosed) {
			errs = append(errs, fmt.Errorf("audits[%d]: unknown status %q", i, a.Status))
		}
	}
	for i, in := range fx.Incidents {
		if !oneOf(in.Status, domain.IncidentOpen, domain.IncidentInvestigating, domain.IncidentClosed) {
			errs = append(errs, fmt.Errorf("incidents[%d]: unknown status %q", i, in.Status))
		}
		if !oneOf(in.Severity, domain.IncidentSeverityMinor, domain.IncidentSeverityModerate,
			domain.IncidentSeverityMajor, domain.IncidentSeverityCritical) {
			errs = append(errs, fmt.Errorf("incidents[%d]: unknown severity %q", i, in.Severity))
		}
	}
	for i, o := range fx.Orders {
		if strings.TrimSpace(o.Number) == "" {
			errs = append(errs, fmt.Errorf("orders[%d]: number is required", i))
		}
		if !oneOf(o.Status, domain.OrderPending, domain.OrderCompleted, domain.OrderCancelled) {
			errs = append(errs, fmt.Errorf("orders[%d]: unknown status %q", i, o.Status))
		}
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, v)
}

// recordWriter is the subset of the condition repository the seeder writes to.
type recordWriter interface {
	InsertStockItem(ctx context.Context, s domain.StockLevel) (int64, error)
	InsertBatch(ctx context.Context, b domain.ExpiryBatch) (int64, error)
	InsertMaintenanceTask(ctx context.Context, t domain.MaintenanceTask) (int64, error)
	InsertAudit(ctx context.Context, a domain.QualityAudit) (int64, error)
	InsertIncident(ctx context.Context, i domain.SafetyIncident) (int64, error)
	InsertOrder(ctx context.Context, o domain.PendingOrder) (int64, error)
}

// businessHooks are the triggers a real POS/ERP write would fire.
type businessHooks interface {
	OnStockAdjusted(ctx context.Context, item domain.StockLevel)
	OnOrderCreated(ctx context.Context, orderID int64, orderNumber string, total float64)
}

type seedSummary struct {
	Items, Batches, Tasks, Audits, Incidents, Orders int
}

func (s seedSummary) String() string {
	return fmt.Sprintf("items=%d batches=%d maintenance=%d audits=%d incidents=%d orders=%d",
		s.Items, s.Batches, s.Tasks, s.Audits, s.Incidents, s.Orders)
}

// apply writes every record in fx and fires the same triggers the business
// screens would.
func (fx *fixture) apply(ctx context.Context, w recordWriter, hooks businessHooks, now time.Time) (seedSummary, error) {
	var sum seedSummary

	for _, s := range fx.Inventory {
		item := domain.StockLevel{Name: s.Name, Quantity: s.Quantity, ReorderLevel: s.ReorderLevel, Unit: s.Unit}
		id, err := w.InsertStockItem(ctx, item)
		if err != nil {
			return sum, err
		}
		item.ItemID = id
		hooks.OnStockAdjusted(ctx, item)
		sum.Items++
	}

	for _, b := range fx.Batches {
		_, err := w.InsertBatch(ctx, domain.ExpiryBatch{
			ItemName:        b.Item,
			Quantity:        b.Quantity,
			ExpiryDate:      now.AddDate(0, 0, b.ExpiresInDays),
			AlertDaysBefore: b.AlertDaysBefore,
		})
		if err != nil {
			return sum, err
		}
		sum.Batches++
	}

	for _, m := range fx.Maintenance {
		_, err := w.InsertMaintenanceTask(ctx, domain.MaintenanceTask{
			Title:        m.Title,
			Equipment:    m.Equipment,
			Status:       m.Status,
			ScheduledFor: now.Add(time.Duration(m.DueInHours) * time.Hour),
		})
		if err != nil {
			return sum, err
		}
		sum.Tasks++
	}

	for _, a := range fx.Audits {
		_, err := w.InsertAudit(ctx, domain.QualityAudit{
			Title:        a.Title,
			Status:       a.Status,
			FollowUpDate: now.AddDate(0, 0, a.FollowUpInDays),
		})
		if err != nil {
			return sum, err
		}
		sum.Audits++
	}

	for _, in := range fx.Incidents {
		_, err := w.InsertIncident(ctx, domain.SafetyIncident{
			Title:      in.Title,
			Severity:   in.Severity,
			Status:     in.Status,
			ReportedAt: now.Add(-time.Duration(in.ReportedHoursAgo) * time.Hour),
		})
		if err != nil {
			return sum, err
		}
		sum.Incidents++
	}

	for _, o := range fx.Orders {
		id, err := w.InsertOrder(ctx, domain.PendingOrder{
			OrderNumber: o.Number,
			Total:       o.Total,
			Status:      o.Status,
			CreatedAt:   now.Add(-time.Duration(o.AgeMinutes) * time.Minute),
		})
		if err != nil {
			return sum, err
		}
		hooks.OnOrderCreated(ctx, id, o.Number, o.Total)
		sum.Orders++
	}

	logger.Debug("fixture applied", zap.Stringer("summary", sum))
	return sum, nil
}

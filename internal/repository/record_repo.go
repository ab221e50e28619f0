package repository

import (
	"context"
	"fmt"
	"time"

	"sphincs.io/sphincs/internal/domain"
)

// Writes on business records. The full CRUD for these tables belongs to the
// ERP screens; the alerting side only needs fixtures, stock adjustments and
// status transitions.

// statusTables whitelists the tables SetStatus may touch.
var statusTables = map[string]bool{
	TableMaintenanceTasks: true,
	TableQualityAudits:    true,
	TableSafetyIncidents:  true,
	TablePOSOrders:        true,
}

// InsertStockItem creates an inventory item and returns its id.
func (r *ConditionRepository) InsertStockItem(ctx context.Context, s domain.StockLevel) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO inventory_items (name, quantity, reorder_level, unit)
		VALUES (?, ?, ?, ?) RETURNING id`), s.Name, s.Quantity, s.ReorderLevel, s.Unit)
	if err != nil {
		return 0, fmt.Errorf("inserting inventory item %q: %w", s.Name, err)
	}
	return id, nil
}

// SetStockQuantity overwrites an item's on-hand quantity.
func (r *ConditionRepository) SetStockQuantity(ctx context.Context, itemID int64, quantity float64) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE inventory_items SET quantity = ? WHERE id = ?`), quantity, itemID)
	if err != nil {
		return fmt.Errorf("updating quantity of item %d: %w", itemID, err)
	}
	if n, err := rowsAffected(res); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertBatch creates an ingredient batch and returns its id.
func (r *ConditionRepository) InsertBatch(ctx context.Context, b domain.ExpiryBatch) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO ingredient_batches
		(item_name, quantity, expiry_date, alert_days_before, is_expired)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		b.ItemName, b.Quantity, b.ExpiryDate.UTC(), b.AlertDaysBefore, b.IsExpired)
	if err != nil {
		return 0, fmt.Errorf("inserting batch of %q: %w", b.ItemName, err)
	}
	return id, nil
}

// InsertMaintenanceTask creates a maintenance task and returns its id.
func (r *ConditionRepository) InsertMaintenanceTask(ctx context.Context, t domain.MaintenanceTask) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO maintenance_tasks
		(title, equipment, status, scheduled_for) VALUES (?, ?, ?, ?) RETURNING id`),
		t.Title, t.Equipment, t.Status, t.ScheduledFor.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting maintenance task %q: %w", t.Title, err)
	}
	return id, nil
}

// InsertAudit creates a quality audit and returns its id.
func (r *ConditionRepository) InsertAudit(ctx context.Context, a domain.QualityAudit) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO quality_audits
		(title, status, follow_up_date) VALUES (?, ?, ?) RETURNING id`),
		a.Title, a.Status, a.FollowUpDate.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting audit %q: %w", a.Title, err)
	}
	return id, nil
}

// InsertIncident creates a safety incident and returns its id.
func (r *ConditionRepository) InsertIncident(ctx context.Context, i domain.SafetyIncident) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO safety_incidents
		(title, severity, status, reported_at) VALUES (?, ?, ?, ?) RETURNING id`),
		i.Title, i.Severity, i.Status, i.ReportedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting incident %q: %w", i.Title, err)
	}
	return id, nil
}

// InsertOrder creates a POS order and returns its id.
func (r *ConditionRepository) InsertOrder(ctx context.Context, o domain.PendingOrder) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`INSERT INTO pos_orders
		(order_number, total, status, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		o.OrderNumber, o.Total, o.Status, o.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting order %q: %w", o.OrderNumber, err)
	}
	return id, nil
}

// SetStatus moves a maintenance task, audit, incident or order to a new status.
func (r *ConditionRepository) SetStatus(ctx context.Context, table string, id int64, status string) error {
	if !statusTables[table] {
		return fmt.Errorf("status updates not supported on %q", table)
	}
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE `+table+` SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return fmt.Errorf("updating status of %s %d: %w", table, id, err)
	}
	if n, err := rowsAffected(res); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Table names accepted by SetStatus.
const (
	TableMaintenanceTasks = "maintenance_tasks"
	TableQualityAudits    = "quality_audits"
	TableSafetyIncidents  = "safety_incidents"
	TablePOSOrders        = "pos_orders"
)

// SetBatchExpiry moves a batch's expiry date.
func (r *ConditionRepository) SetBatchExpiry(ctx context.Context, batchID int64, expiry time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE ingredient_batches SET expiry_date = ? WHERE id = ?`), expiry.UTC(), batchID)
	if err != nil {
		return fmt.Errorf("updating expiry of batch %d: %w", batchID, err)
	}
	return nil
}

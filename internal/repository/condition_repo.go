package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sphincs.io/sphincs/internal/domain"
)

// ConditionRepository reads the business records the scanner inspects and
// owns the few writes the alerting side needs on them (expiry flag, stock
// adjustments, status changes, fixtures).
//
// Queries filter by status only. Time windows are evaluated by the caller
// against its own clock.
type ConditionRepository struct {
	db *sqlx.DB
}

// NewConditionRepository creates a condition repository.
func NewConditionRepository(db *sqlx.DB) *ConditionRepository {
	return &ConditionRepository{db: db}
}

type stockRow struct {
	ID           int64   `db:"id"`
	Name         string  `db:"name"`
	Quantity     float64 `db:"quantity"`
	ReorderLevel float64 `db:"reorder_level"`
	Unit         string  `db:"unit"`
}

// LowStock lists items at or under their reorder level.
func (r *ConditionRepository) LowStock(ctx context.Context) ([]domain.StockLevel, error) {
	var rows []stockRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, name, quantity, reorder_level, unit
		FROM inventory_items WHERE quantity <= reorder_level ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying low stock: %w", err)
	}
	out := make([]domain.StockLevel, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StockLevel{
			ItemID:       row.ID,
			Name:         row.Name,
			Quantity:     row.Quantity,
			ReorderLevel: row.ReorderLevel,
			Unit:         row.Unit,
		})
	}
	return out, nil
}

// StockLevel returns one inventory item.
func (r *ConditionRepository) StockLevel(ctx context.Context, itemID int64) (domain.StockLevel, error) {
	var row stockRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT id, name, quantity, reorder_level, unit
		FROM inventory_items WHERE id = ?`), itemID)
	if err != nil {
		return domain.StockLevel{}, notFoundOr(err, "getting inventory item %d", itemID)
	}
	return domain.StockLevel{
		ItemID:       row.ID,
		Name:         row.Name,
		Quantity:     row.Quantity,
		ReorderLevel: row.ReorderLevel,
		Unit:         row.Unit,
	}, nil
}

type batchRow struct {
	ID              int64     `db:"id"`
	ItemName        string    `db:"item_name"`
	Quantity        float64   `db:"quantity"`
	ExpiryDate      time.Time `db:"expiry_date"`
	AlertDaysBefore int       `db:"alert_days_before"`
	IsExpired       bool      `db:"is_expired"`
}

// StockedBatches lists ingredient batches that still hold stock.
func (r *ConditionRepository) StockedBatches(ctx context.Context) ([]domain.ExpiryBatch, error) {
	var rows []batchRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, item_name, quantity, expiry_date, alert_days_before, is_expired
		FROM ingredient_batches WHERE quantity > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying ingredient batches: %w", err)
	}
	out := make([]domain.ExpiryBatch, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExpiryBatch{
			BatchID:         row.ID,
			ItemName:        row.ItemName,
			ExpiryDate:      row.ExpiryDate.UTC(),
			AlertDaysBefore: row.AlertDaysBefore,
			Quantity:        row.Quantity,
			IsExpired:       row.IsExpired,
		})
	}
	return out, nil
}

// MarkBatchExpired flags a batch as expired. Flagging an already expired
// batch is a no-op; the result reports whether the flag changed.
func (r *ConditionRepository) MarkBatchExpired(ctx context.Context, batchID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE ingredient_batches SET is_expired = ? WHERE id = ? AND is_expired = ?`),
		true, batchID, false)
	if err != nil {
		return false, fmt.Errorf("flagging batch %d expired: %w", batchID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, fmt.Errorf("flagging batch %d expired: %w", batchID, err)
	}
	return n > 0, nil
}

type maintenanceRow struct {
	ID           int64     `db:"id"`
	Title        string    `db:"title"`
	Equipment    string    `db:"equipment"`
	Status       string    `db:"status"`
	ScheduledFor time.Time `db:"scheduled_for"`
}

// OpenMaintenance lists open and in-progress maintenance tasks.
func (r *ConditionRepository) OpenMaintenance(ctx context.Context) ([]domain.MaintenanceTask, error) {
	var rows []maintenanceRow
	q, args, err := sqlx.In(`SELECT id, title, equipment, status, scheduled_for
		FROM maintenance_tasks WHERE status IN (?) ORDER BY id`,
		[]string{domain.MaintenanceOpen, domain.MaintenanceInProgress})
	if err != nil {
		return nil, fmt.Errorf("building maintenance query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("querying maintenance tasks: %w", err)
	}
	out := make([]domain.MaintenanceTask, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.MaintenanceTask{
			TaskID:       row.ID,
			Title:        row.Title,
			Equipment:    row.Equipment,
			Status:       row.Status,
			ScheduledFor: row.ScheduledFor.UTC(),
		})
	}
	return out, nil
}

type auditRow struct {
	ID           int64     `db:"id"`
	Title        string    `db:"title"`
	Status       string    `db:"status"`
	FollowUpDate time.Time `db:"follow_up_date"`
}

// OpenAudits lists open and in-progress quality audits.
func (r *ConditionRepository) OpenAudits(ctx context.Context) ([]domain.QualityAudit, error) {
	var rows []auditRow
	q, args, err := sqlx.In(`SELECT id, title, status, follow_up_date
		FROM quality_audits WHERE status IN (?) ORDER BY id`,
		[]string{domain.AuditOpen, domain.AuditInProgress})
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("querying quality audits: %w", err)
	}
	out := make([]domain.QualityAudit, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.QualityAudit{
			AuditID:      row.ID,
			Title:        row.Title,
			Status:       row.Status,
			FollowUpDate: row.FollowUpDate.UTC(),
		})
	}
	return out, nil
}

type incidentRow struct {
	ID         int64     `db:"id"`
	Title      string    `db:"title"`
	Severity   string    `db:"severity"`
	Status     string    `db:"status"`
	ReportedAt time.Time `db:"reported_at"`
}

// ActiveIncidents lists open and investigating safety incidents.
func (r *ConditionRepository) ActiveIncidents(ctx context.Context) ([]domain.SafetyIncident, error) {
	var rows []incidentRow
	q, args, err := sqlx.In(`SELECT id, title, severity, status, reported_at
		FROM safety_incidents WHERE status IN (?) ORDER BY id`,
		[]string{domain.IncidentOpen, domain.IncidentInvestigating})
	if err != nil {
		return nil, fmt.Errorf("building incident query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("querying safety incidents: %w", err)
	}
	out := make([]domain.SafetyIncident, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SafetyIncident{
			IncidentID: row.ID,
			Title:      row.Title,
			Severity:   row.Severity,
			Status:     row.Status,
			ReportedAt: row.ReportedAt.UTC(),
		})
	}
	return out, nil
}

type orderRow struct {
	ID          int64     `db:"id"`
	OrderNumber string    `db:"order_number"`
	Total       float64   `db:"total"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

// PendingOrders lists POS orders in pending status.
func (r *ConditionRepository) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT id, order_number, total, status, created_at
		FROM pos_orders WHERE status = ? ORDER BY id`), domain.OrderPending)
	if err != nil {
		return nil, fmt.Errorf("querying pending orders: %w", err)
	}
	out := make([]domain.PendingOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PendingOrder{
			OrderID:     row.ID,
			OrderNumber: row.OrderNumber,
			Total:       row.Total,
			Status:      row.Status,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

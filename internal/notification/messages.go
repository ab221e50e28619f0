package notification

import (
	"fmt"
	"strconv"
	"time"

	"sphincs.io/sphincs/internal/domain"
)

// Alert wording for scanned conditions. The scanner and the business
// triggers share these so an alert reads the same whoever raised it.

// LowStockAlert words a low stock alert for item.
func LowStockAlert(item domain.StockLevel) EmitParams {
	return EmitParams{
		Module:   domain.ModuleInventory,
		Title:    "Low stock: " + item.Name,
		Message:  fmt.Sprintf("%s is at %s (reorder level %s).", item.Name, quantity(item.Quantity, item.Unit), quantity(item.ReorderLevel, item.Unit)),
		Severity: domain.SeverityWarning,
		Source:   &domain.Source{Type: domain.SourceInventoryLow, ID: item.ItemID},
		Payload: map[string]any{
			"item_id":       item.ItemID,
			"quantity":      item.Quantity,
			"reorder_level": item.ReorderLevel,
		},
	}
}

// ExpiredBatchAlert words a critical alert for a batch past its expiry date.
func ExpiredBatchAlert(b domain.ExpiryBatch) EmitParams {
	return EmitParams{
		Module:   domain.ModuleInventory,
		Title:    "Expired: " + b.ItemName,
		Message:  fmt.Sprintf("Batch #%d of %s expired on %s.", b.BatchID, b.ItemName, b.ExpiryDate.Format(time.DateOnly)),
		Severity: domain.SeverityCritical,
		Source:   &domain.Source{Type: domain.SourceInventoryExpired, ID: b.BatchID},
		Payload: map[string]any{
			"batch_id":    b.BatchID,
			"expiry_date": b.ExpiryDate.Format(time.RFC3339),
		},
	}
}

// ExpiringBatchAlert words a warning for a batch inside its alert window.
func ExpiringBatchAlert(b domain.ExpiryBatch, now time.Time) EmitParams {
	days := int(b.ExpiryDate.Sub(now).Hours() / 24)
	when := "within a day"
	if days == 1 {
		when = "in 1 day"
	} else if days > 1 {
		when = fmt.Sprintf("in %d days", days)
	}
	return EmitParams{
		Module:   domain.ModuleInventory,
		Title:    "Expiring soon: " + b.ItemName,
		Message:  fmt.Sprintf("Batch #%d of %s expires %s (%s).", b.BatchID, b.ItemName, when, b.ExpiryDate.Format(time.DateOnly)),
		Severity: domain.SeverityWarning,
		Source:   &domain.Source{Type: domain.SourceInventoryExpiring, ID: b.BatchID},
		Payload: map[string]any{
			"batch_id":    b.BatchID,
			"expiry_date": b.ExpiryDate.Format(time.RFC3339),
		},
	}
}

// OverdueMaintenanceAlert words a warning for an overdue maintenance task.
func OverdueMaintenanceAlert(t domain.MaintenanceTask) EmitParams {
	msg := fmt.Sprintf("%q was scheduled for %s and is still %s.", t.Title, t.ScheduledFor.Format("2006-01-02 15:04"), t.Status)
	if t.Equipment != "" {
		msg = t.Equipment + ": " + msg
	}
	return EmitParams{
		Module:   domain.ModuleOperations,
		Title:    "Maintenance overdue: " + t.Title,
		Message:  msg,
		Severity: domain.SeverityWarning,
		Source:   &domain.Source{Type: domain.SourceMaintenanceTask, ID: t.TaskID},
		Payload:  map[string]any{"task_id": t.TaskID, "status": t.Status},
	}
}

// AuditFollowUpAlert words an info alert for an audit due for follow-up.
func AuditFollowUpAlert(a domain.QualityAudit) EmitParams {
	return EmitParams{
		Module:   domain.ModuleOperations,
		Title:    "Audit follow-up due: " + a.Title,
		Message:  fmt.Sprintf("Quality audit %q needs follow-up (due %s).", a.Title, a.FollowUpDate.Format(time.DateOnly)),
		Severity: domain.SeverityInfo,
		Source:   &domain.Source{Type: domain.SourceQualityAudit, ID: a.AuditID},
		Payload:  map[string]any{"audit_id": a.AuditID, "status": a.Status},
	}
}

// IncidentAlert words an alert for an open safety incident.
func IncidentAlert(i domain.SafetyIncident) EmitParams {
	return EmitParams{
		Module:   domain.ModuleSafety,
		Title:    "Safety incident: " + i.Title,
		Message:  fmt.Sprintf("A %s incident is %s.", i.Severity, i.Status),
		Severity: i.AlertSeverity(),
		Source:   &domain.Source{Type: domain.SourceSafetyIncident, ID: i.IncidentID},
		Payload: map[string]any{
			"incident_id": i.IncidentID,
			"severity":    i.Severity,
			"status":      i.Status,
		},
	}
}

// PendingOrderAlert words an info alert for a recently created pending order.
func PendingOrderAlert(o domain.PendingOrder) EmitParams {
	return EmitParams{
		Module:   domain.ModulePOS,
		Title:    "Order pending: " + o.OrderNumber,
		Message:  fmt.Sprintf("Order %s (%.2f) is waiting to be completed.", o.OrderNumber, o.Total),
		Severity: domain.SeverityInfo,
		Source:   &domain.Source{Type: domain.SourcePendingOrder, ID: o.OrderID},
		Payload:  map[string]any{"order_id": o.OrderID, "total": o.Total},
	}
}

func quantity(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

package domain

import "time"

// Read models for the business records the condition scanner inspects.
// They carry only the identifying id and the fields needed to word an alert.

// StockLevel is an inventory item with its reorder threshold.
type StockLevel struct {
	ItemID       int64   `json:"item_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	ReorderLevel float64 `json:"reorder_level"`
	Unit         string  `json:"unit,omitempty"`
}

// Low reports whether the item is at or under its reorder level.
func (s StockLevel) Low() bool {
	return s.Quantity <= s.ReorderLevel
}

// ExpiryBatch is a received lot of an ingredient with an expiry date.
type ExpiryBatch struct {
	BatchID         int64     `json:"batch_id"`
	ItemName        string    `json:"item_name"`
	ExpiryDate      time.Time `json:"expiry_date"`
	AlertDaysBefore int       `json:"alert_days_before"`
	Quantity        float64   `json:"quantity"`
	IsExpired       bool      `json:"is_expired"`
}

// Expired reports whether the batch is past its expiry date at now.
func (b ExpiryBatch) Expired(now time.Time) bool {
	return now.After(b.ExpiryDate)
}

// ExpiringSoon reports whether now falls inside the batch's alert window
// but before the expiry date itself.
func (b ExpiryBatch) ExpiringSoon(now time.Time) bool {
	if b.Expired(now) {
		return false
	}
	windowStart := b.ExpiryDate.AddDate(0, 0, -b.AlertDaysBefore)
	return !now.Before(windowStart)
}

// Maintenance task statuses.
const (
	MaintenanceOpen       = "open"
	MaintenanceInProgress = "in_progress"
	MaintenanceDone       = "done"
)

// MaintenanceTask is a scheduled equipment maintenance job.
type MaintenanceTask struct {
	TaskID       int64     `json:"task_id"`
	Title        string    `json:"title"`
	Equipment    string    `json:"equipment,omitempty"`
	Status       string    `json:"status"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Quality audit statuses.
const (
	AuditOpen       = "open"
	AuditInProgress = "in_progress"
	AuditResolved   = "resolved"
	AuditClosed     = "closed"
)

// QualityAudit is an audit finding awaiting follow-up.
type QualityAudit struct {
	AuditID      int64     `json:"audit_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	FollowUpDate time.Time `json:"follow_up_date"`
}

// Safety incident statuses and severities.
const (
	IncidentOpen          = "open"
	IncidentInvestigating = "investigating"
	IncidentClosed        = "closed"

	IncidentSeverityMinor    = "minor"
	IncidentSeverityModerate = "moderate"
	IncidentSeverityMajor    = "major"
	IncidentSeverityCritical = "critical"
)

// SafetyIncident is a reported workplace safety incident.
type SafetyIncident struct {
	IncidentID int64     `json:"incident_id"`
	Title      string    `json:"title"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	ReportedAt time.Time `json:"reported_at"`
}

// POS order statuses.
const (
	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// PendingOrder is a POS order still waiting to be completed.
type PendingOrder struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Total       float64   `json:"total"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Overdue reports whether an unfinished task was scheduled before now.
func (t MaintenanceTask) Overdue(now time.Time) bool {
	if t.Status != MaintenanceOpen && t.Status != MaintenanceInProgress {
		return false
	}
	return t.ScheduledFor.Before(now)
}

// Due reports whether an unresolved audit has a follow-up date at or before
// the calendar day of now.
func (a QualityAudit) Due(now time.Time) bool {
	if a.Status != AuditOpen && a.Status != AuditInProgress {
		return false
	}
	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return a.FollowUpDate.Before(tomorrow)
}

// Active reports whether the incident is still open or under investigation.
func (i SafetyIncident) Active() bool {
	return i.Status == IncidentOpen || i.Status == IncidentInvestigating
}

// AlertSeverity maps the incident's own severity onto alert severity.
func (i SafetyIncident) AlertSeverity() Severity {
	switch i.Severity {
	case IncidentSeverityMajor, IncidentSeverityCritical:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Recent reports whether a pending order was created within window of now.
func (o PendingOrder) Recent(now time.Time, window time.Duration) bool {
	if o.Status != OrderPending {
		return false
	}
	return !o.CreatedAt.Before(now.Add(-window))
}

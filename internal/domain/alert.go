// Package domain provides the alerting domain model for Sphincs.
//
// Types here are persistence-agnostic: repositories map rows into them and
// every other layer (center, scanner, API, desk panel) works only with these.
//
// Import Path: sphincs.io/sphincs/internal/domain
package domain

import (
	"strings"
	"time"
)

// Severity is the ordered urgency of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of s (info < warning < critical).
// Unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// AtLeast reports whether s is at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// ParseSeverity parses a case-insensitive severity token.
func ParseSeverity(token string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(token)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Module is a named alert channel.
type Module string

const (
	ModuleInventory  Module = "Inventory"
	ModuleOperations Module = "Operations"
	ModuleSales      Module = "Sales"
	ModuleSafety     Module = "Safety"
	ModuleFinance    Module = "Finance"
	ModulePOS        Module = "POS"
	ModuleSystem     Module = "System"
)

var knownModules = []Module{
	ModuleInventory,
	ModuleOperations,
	ModuleSales,
	ModuleSafety,
	ModuleFinance,
	ModulePOS,
	ModuleSystem,
}

// KnownModules returns a copy of the fixed channel list.
func KnownModules() []Module {
	out := make([]Module, len(knownModules))
	copy(out, knownModules)
	return out
}

// ParseModule matches a channel name case-insensitively.
func ParseModule(name string) (Module, bool) {
	name = strings.TrimSpace(name)
	for _, m := range knownModules {
		if strings.EqualFold(string(m), name) {
			return m, true
		}
	}
	return "", false
}

// Target is the surface an alert is rendered on.
type Target string

const (
	TargetDesktop Target = "desktop"
	TargetMobile  Target = "mobile"
)

// Source identifies the business entity that triggered an alert.
type Source struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// Source types raised by the condition scanner.
const (
	SourceInventoryLow      = "inventory_low"
	SourceInventoryExpiring = "inventory_expiring"
	SourceInventoryExpired  = "inventory_expired"
	SourceMaintenanceTask   = "maintenance_task"
	SourceQualityAudit      = "quality_audit"
	SourceSafetyIncident    = "safety_incident"
	SourcePendingOrder      = "pos_order_pending"
)

// Alert is one persisted occurrence of a business condition.
type Alert struct {
	ID             int64          `json:"id"`
	Module         Module         `json:"module"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Severity       Severity       `json:"severity"`
	Source         *Source        `json:"source,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	TriggeredAt    time.Time      `json:"triggered_at"`
	IsRead         bool           `json:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	NotifiedUserID *int64         `json:"notified_user_id,omitempty"`
}

// VisibleTo reports whether the alert is a broadcast or targeted at userID.
func (a Alert) VisibleTo(userID int64) bool {
	return a.NotifiedUserID == nil || *a.NotifiedUserID == userID
}

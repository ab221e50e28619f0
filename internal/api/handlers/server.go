// Package handlers implements the Sphincs REST API.
//
// Request and response shapes follow internal/api/openapi/openapi.yaml; the
// OpenAPI validator middleware enforces them at runtime. Handlers report
// failures through c.Error and never write error bodies themselves.
//
// Import Path: sphincs.io/sphincs/internal/api/handlers
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/jobs"
	"sphincs.io/sphincs/internal/notification"
)

// AlertReader loads a single alert; repository.ErrNotFound when missing.
type AlertReader interface {
	Get(ctx context.Context, id int64) (*domain.Alert, error)
}

// Pinger checks store reachability for readiness probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ScanDispatcher starts an on-demand condition scan.
type ScanDispatcher interface {
	Dispatch(ctx context.Context, requestedBy string) (jobs.DispatchResult, error)
}

// Server holds the handler dependencies.
type Server struct {
	center *notification.Center
	prefs  *notification.Preferences
	filter *notification.Filter
	alerts AlertReader
	scans  ScanDispatcher
	db     Pinger
	audit  AuditRecorder
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no Wire/Dig.
type ServerDeps struct {
	Center      *notification.Center
	Preferences *notification.Preferences
	Filter      *notification.Filter
	Alerts      AlertReader
	Scans       ScanDispatcher // Optional: nil disables POST /scanner/run
	DB          Pinger
	Audit       AuditRecorder // Optional: nil disables the audit trail
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	filter := deps.Filter
	if filter == nil && deps.Preferences != nil {
		filter = notification.NewFilter(deps.Preferences)
	}
	return &Server{
		center: deps.Center,
		prefs:  deps.Preferences,
		filter: filter,
		alerts: deps.Alerts,
		scans:  deps.Scans,
		db:     deps.DB,
		audit:  deps.Audit,
	}
}

// RegisterRoutes mounts every operation of the API on rg. managerOnly guards
// the operations that change shared state for all terminals.
func RegisterRoutes(rg gin.IRoutes, s *Server, managerOnly gin.HandlerFunc) {
	guard := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if managerOnly == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{managerOnly, h}
	}

	rg.GET("/health/live", s.GetLiveness)
	rg.GET("/health/ready", s.GetReadiness)

	rg.GET("/mobile/notifications", s.ListMobileNotifications)
	rg.POST("/mobile/notifications/read", s.MarkMobileNotificationsRead)

	rg.GET("/alerts", s.ListAlerts)
	rg.GET("/alerts/unread-count", s.GetUnreadCount)
	rg.POST("/alerts/read-all", s.MarkAllAlertsRead)
	rg.POST("/alerts/emit", guard(s.EmitAlert)...)
	rg.POST("/alerts/:alert_id/read", s.MarkAlertRead)

	rg.GET("/preferences", s.ListPreferences)
	rg.POST("/preferences/snooze", s.SnoozeChannels)
	rg.DELETE("/preferences/snooze", s.ClearSnooze)
	rg.PUT("/preferences/:module", s.UpdatePreference)

	rg.POST("/scanner/run", guard(s.RunScan)...)
}

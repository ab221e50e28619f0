package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/governance/audit"
	"sphincs.io/sphincs/internal/notification"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/repository"
)

type alertList struct {
	Items  []domain.Alert `json:"items"`
	Unread int            `json:"unread"`
}

type countResponse struct {
	Count int `json:"count"`
}

type emitRequest struct {
	Module         string         `json:"module"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Severity       string         `json:"severity"`
	Source         *domain.Source `json:"source"`
	Payload        map[string]any `json:"payload"`
	TargetUserID   *int64         `json:"target_user_id"`
	AllowDuplicate bool           `json:"allow_duplicate"`
}

// ListAlerts handles GET /alerts.
//
// Desktop preferences are applied unless ?unfiltered=true.
func (s *Server) ListAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := s.center.ListRecentForUserChecked(ctx, userID, queryLimit(c))
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertQueryFail, "could not load alerts", http.StatusInternalServerError))
		return
	}
	if unfiltered, _ := strconv.ParseBool(c.Query("unfiltered")); !unfiltered {
		items, err = s.filter.Apply(ctx, userID, items, domain.TargetDesktop)
		if err != nil {
			_ = c.Error(apperrors.Wrap(err, apperrors.CodePreferenceLoadFail,
				"could not load notification preferences", http.StatusInternalServerError))
			return
		}
	}
	if items == nil {
		items = []domain.Alert{}
	}

	c.JSON(http.StatusOK, alertList{Items: items, Unread: notification.CountUnread(items)})
}

// GetUnreadCount handles GET /alerts/unread-count.
func (s *Server) GetUnreadCount(c *gin.Context) {
	n, err := s.center.CountUnreadChecked(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertQueryFail, "could not count unread alerts", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, countResponse{Count: n})
}

// MarkAlertRead handles POST /alerts/{alert_id}/read.
func (s *Server) MarkAlertRead(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := strconv.ParseInt(c.Param("alert_id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.ErrInvalidRequestf("alert_id must be a positive integer"))
		return
	}

	if _, err := s.alerts.Get(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = c.Error(apperrors.ErrAlertNotFoundf(id))
			return
		}
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertQueryFail, "could not load alert", http.StatusInternalServerError))
		return
	}
	if !s.center.MarkRead(ctx, id) {
		_ = c.Error(apperrors.New(apperrors.CodeAlertUpdateFail, "could not mark alert read", http.StatusInternalServerError))
		return
	}

	alert, err := s.alerts.Get(ctx, id)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertQueryFail, "could not load alert", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, alert)
}

// MarkAllAlertsRead handles POST /alerts/read-all.
func (s *Server) MarkAllAlertsRead(c *gin.Context) {
	n, err := s.center.MarkAllReadChecked(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertUpdateFail, "could not mark alerts read", http.StatusInternalServerError))
		return
	}
	logger.Info("all alerts marked read", zap.String("actor", actorFromCtx(c)), zap.Int("count", n))
	s.record(c, audit.ActionAlertsReadAll, audit.ResourceAlert, "", map[string]any{"count": n})
	c.JSON(http.StatusOK, countResponse{Count: n})
}

// EmitAlert handles POST /alerts/emit. A repeated emit for a source whose
// alert is still unread answers with that alert.
func (s *Server) EmitAlert(c *gin.Context) {
	var req emitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidRequestf("invalid emit request body"))
		return
	}
	module, ok := domain.ParseModule(req.Module)
	if !ok {
		_ = c.Error(apperrors.ErrUnknownModulef(req.Module))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		_ = c.Error(apperrors.ErrInvalidRequestf("title is required"))
		return
	}

	alert := s.center.Emit(c.Request.Context(), notification.EmitParams{
		Module:         module,
		Title:          req.Title,
		Message:        req.Message,
		Severity:       domain.Severity(strings.ToLower(strings.TrimSpace(req.Severity))),
		Source:         req.Source,
		Payload:        req.Payload,
		TargetUserID:   req.TargetUserID,
		AllowDuplicate: req.AllowDuplicate,
	})
	if alert == nil {
		_ = c.Error(apperrors.New(apperrors.CodeAlertEmitFail, "alert could not be stored", http.StatusInternalServerError))
		return
	}
	s.record(c, audit.ActionAlertEmit, audit.ResourceAlert, strconv.FormatInt(alert.ID, 10), map[string]any{
		"module":   string(alert.Module),
		"severity": string(alert.Severity),
	})
	c.JSON(http.StatusCreated, alert)
}

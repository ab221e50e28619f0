package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/governance/audit"
	"sphincs.io/sphincs/internal/notification"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
)

type preferenceList struct {
	Items []domain.Preference `json:"items"`
}

type snoozeRequest struct {
	Minutes int      `json:"minutes"`
	Modules []string `json:"modules"`
}

type moduleSelection struct {
	Modules []string `json:"modules"`
}

// ListPreferences handles GET /preferences.
func (s *Server) ListPreferences(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	prefs, err := s.prefs.ForUser(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodePreferenceLoadFail,
			"could not load notification preferences", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, preferenceList{Items: prefs})
}

// UpdatePreference handles PUT /preferences/{module}.
func (s *Server) UpdatePreference(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	module, ok := domain.ParseModule(c.Param("module"))
	if !ok {
		_ = c.Error(apperrors.ErrUnknownModulef(c.Param("module")))
		return
	}

	var req notification.PreferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidRequestf("invalid preference body"))
		return
	}

	pref, err := s.prefs.Update(c.Request.Context(), userID, module, req)
	if err != nil {
		_ = c.Error(preferenceError(err))
		return
	}
	s.record(c, audit.ActionPreferenceUpdate, audit.ResourcePreference, string(module), map[string]any{"user_id": userID})
	c.JSON(http.StatusOK, pref)
}

// SnoozeChannels handles POST /preferences/snooze. No modules means all.
func (s *Server) SnoozeChannels(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req snoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidRequestf("invalid snooze body"))
		return
	}
	if req.Minutes <= 0 {
		_ = c.Error(apperrors.ErrInvalidRequestf("minutes must be positive"))
		return
	}
	modules, appErr := parseModules(req.Modules)
	if appErr != nil {
		_ = c.Error(appErr)
		return
	}

	n, err := s.prefs.Snooze(c.Request.Context(), userID, time.Duration(req.Minutes)*time.Minute, modules...)
	if err != nil {
		_ = c.Error(preferenceError(err))
		return
	}
	s.record(c, audit.ActionSnooze, audit.ResourcePreference, "", map[string]any{
		"user_id": userID,
		"minutes": req.Minutes,
		"count":   n,
	})
	c.JSON(http.StatusOK, countResponse{Count: n})
}

// ClearSnooze handles DELETE /preferences/snooze. The body is optional.
func (s *Server) ClearSnooze(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req moduleSelection
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.ErrInvalidRequestf("invalid module selection"))
			return
		}
	}
	modules, appErr := parseModules(req.Modules)
	if appErr != nil {
		_ = c.Error(appErr)
		return
	}

	n, err := s.prefs.ClearSnooze(c.Request.Context(), userID, modules...)
	if err != nil {
		_ = c.Error(preferenceError(err))
		return
	}
	s.record(c, audit.ActionSnoozeClear, audit.ResourcePreference, "", map[string]any{"user_id": userID, "count": n})
	c.JSON(http.StatusOK, countResponse{Count: n})
}

func preferenceError(err error) *apperrors.AppError {
	if errors.Is(err, notification.ErrUnknownModule) {
		return apperrors.Wrap(err, apperrors.CodeUnknownModule, err.Error(), http.StatusBadRequest)
	}
	return apperrors.Wrap(err, apperrors.CodePreferenceSaveFail,
		"could not save notification preferences", http.StatusInternalServerError)
}

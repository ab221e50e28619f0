package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sphincs.io/sphincs/internal/domain"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
)

type mobileNotificationList struct {
	Success       bool                 `json:"success"`
	Unread        int                  `json:"unread"`
	Notifications []mobileNotification `json:"notifications"`
}

type alertIDsRequest struct {
	IDs []int64 `json:"ids"`
}

type mobileMarkReadResult struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

// ListMobileNotifications handles GET /mobile/notifications.
//
// The list covers broadcast alerts plus those targeted at the caller, with
// the caller's mobile preferences applied; unread counts the filtered rows.
func (s *Server) ListMobileNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	recent, err := s.center.ListRecentForUserChecked(ctx, userID, queryLimit(c))
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertQueryFail, "could not load notifications", http.StatusInternalServerError))
		return
	}
	visible, err := s.filter.Apply(ctx, userID, recent, domain.TargetMobile)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodePreferenceLoadFail,
			"could not load notification preferences", http.StatusInternalServerError))
		return
	}

	resp := mobileNotificationList{
		Success:       true,
		Notifications: make([]mobileNotification, 0, len(visible)),
	}
	for _, a := range visible {
		if !a.IsRead {
			resp.Unread++
		}
		resp.Notifications = append(resp.Notifications, toMobile(a))
	}
	c.JSON(http.StatusOK, resp)
}

// MarkMobileNotificationsRead handles POST /mobile/notifications/read.
func (s *Server) MarkMobileNotificationsRead(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	var req alertIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrInvalidRequestf("request body must be {\"ids\": [...]}"))
		return
	}
	if len(req.IDs) == 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeAlertIDsEmpty, "ids must not be empty"))
		return
	}

	updated, err := s.center.MarkManyReadChecked(c.Request.Context(), req.IDs)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeAlertUpdateFail, "could not mark notifications read", http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, mobileMarkReadResult{Success: true, Updated: updated})
}

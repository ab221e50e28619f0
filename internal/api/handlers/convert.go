package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sphincs.io/sphincs/internal/api/middleware"
	"sphincs.io/sphincs/internal/domain"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
)

// mobileNotification is the row shape the mobile companion renders.
type mobileNotification struct {
	ID          int64           `json:"id"`
	Module      domain.Module   `json:"module"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Severity    domain.Severity `json:"severity"`
	TriggeredAt *string         `json:"triggered_at"`
	IsRead      bool            `json:"is_read"`
}

func toMobile(a domain.Alert) mobileNotification {
	n := mobileNotification{
		ID:       a.ID,
		Module:   a.Module,
		Title:    a.Title,
		Message:  a.Message,
		Severity: a.Severity,
		IsRead:   a.IsRead,
	}
	if !a.TriggeredAt.IsZero() {
		ts := a.TriggeredAt.UTC().Format(time.RFC3339)
		n.TriggeredAt = &ts
	}
	return n
}

// queryLimit reads ?limit=; absent or malformed values fall back to 0 and
// the center applies its default.
func queryLimit(c *gin.Context) int {
	v, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return v
}

// currentUser returns the authenticated user or reports 401.
func currentUser(c *gin.Context) (int64, bool) {
	userID := middleware.GetUserID(c.Request.Context())
	if userID <= 0 {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeUnauthorized, "not authenticated"))
		return 0, false
	}
	return userID, true
}

// parseModules resolves channel names case-insensitively.
func parseModules(names []string) ([]domain.Module, *apperrors.AppError) {
	out := make([]domain.Module, 0, len(names))
	for _, name := range names {
		m, ok := domain.ParseModule(name)
		if !ok {
			return nil, apperrors.ErrUnknownModulef(name)
		}
		out = append(out, m)
	}
	return out, nil
}

func actorFromCtx(c *gin.Context) string {
	if name := middleware.GetUsername(c.Request.Context()); name != "" {
		return name
	}
	if uid := middleware.GetUserID(c.Request.Context()); uid > 0 {
		return strconv.FormatInt(uid, 10)
	}
	return "anonymous"
}

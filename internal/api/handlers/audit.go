package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/pkg/logger"
)

// AuditRecorder appends to the audit trail.
type AuditRecorder interface {
	LogAction(ctx context.Context, action, resourceType, resourceID, actor string, details map[string]any) error
}

// record writes an audit entry for the calling user. A failed write never
// fails the request.
func (s *Server) record(c *gin.Context, action, resourceType, resourceID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	actor := actorFromCtx(c)
	if err := s.audit.LogAction(c.Request.Context(), action, resourceType, resourceID, actor, details); err != nil {
		logger.Warn("audit entry dropped", zap.String("action", action), zap.String("actor", actor), zap.Error(err))
	}
}

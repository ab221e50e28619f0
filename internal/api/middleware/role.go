package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "sphincs.io/sphincs/internal/pkg/errors"
)

// RequireRole returns middleware that lets the request through only when the
// authenticated user holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c.Request.Context())
		if role == "" {
			_ = c.Error(apperrors.Unauthorized(apperrors.CodeUnauthorized, "not authenticated"))
			c.Abort()
			return
		}
		if !slices.Contains(roles, role) {
			_ = c.Error(apperrors.Forbidden(apperrors.CodeForbidden, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

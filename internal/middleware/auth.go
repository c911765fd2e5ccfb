package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/group_quiz_bot/internal/security"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

// OperatorKey is the gin context key holding the authenticated operator.
const OperatorKey = "operator"

// AdminAuth requires a valid "Authorization: Bearer <jwt>" admin token.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := security.ValidateAdminJWT(strings.TrimSpace(token), secret)
		if err != nil {
			logger.Warn("Rejected admin token", "ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(OperatorKey, claims.Operator)
		c.Next()
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/remedy/pkg/models"
)

const roleContextKey = "role"

// Authenticator is the subset of services.AuthService used by the middleware.
type Authenticator interface {
	ValidateAPIKey(apiKey string) (string, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error)
}

// Auth accepts "Bearer <api key>" or "Bearer <jwt>" and stores the caller's role in the context.
func Auth(auth Authenticator, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "MISSING_AUTHORIZATION", "Authorization header is required")
			return
		}

		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			abortWithError(c, http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT", "Authorization header must be in format 'Bearer <token>'")
			return
		}
		tokenString := tokenParts[1]

		// API keys carry no dots, JWTs always do.
		if !strings.Contains(tokenString, ".") {
			role, err := auth.ValidateAPIKey(tokenString)
			if err != nil {
				logger.WithError(err).Warn("Invalid API key")
				abortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
				return
			}
			c.Set(roleContextKey, role)
			c.Next()
			return
		}

		claims, err := auth.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(roleContextKey, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose authenticated role differs from role. It must run after Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) != role {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

func RoleFromContext(c *gin.Context) string {
	return c.GetString(roleContextKey)
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

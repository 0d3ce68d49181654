package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ouredu/request-tracker/pkg/logger"
	"github.com/ouredu/request-tracker/pkg/security/auth"
)

var log = logger.NewLogger()

const (
	bearerSchema = "Bearer "

	// Context keys shared with the tracking middleware.
	ContextUserID    = "user_id"
	ContextRoleID    = "role_id"
	ContextRoleName  = "role_name"
	ContextSessionID = "session_id"
	ContextToken     = "token"
)

// extractToken pulls the access token from the Authorization header, the
// legacy fallback headers some internal clients still send, the token query
// parameter, or the token cookie, in that order.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, bearerSchema) {
		return authHeader[len(bearerSchema):]
	}
	if token := c.GetHeader("x-access-token"); token != "" {
		return token
	}
	if token := c.GetHeader("x-api-key"); token != "" {
		return token
	}
	if token := c.Query("token"); token != "" {
		return token
	}
	if token, err := c.Cookie("token"); err == nil {
		return token
	}
	return ""
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(tokenString, jwtSecret)
		if err != nil {
			log.Error("Token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		if claims.RoleID != nil {
			c.Set(ContextRoleID, *claims.RoleID)
		}
		if claims.RoleName != "" {
			c.Set(ContextRoleName, claims.RoleName)
		}
		if claims.SessionID != nil {
			c.Set(ContextSessionID, *claims.SessionID)
		}
		c.Set(ContextToken, tokenString)

		c.Next()
	}
}

// GetUserID retrieves the authenticated user's ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

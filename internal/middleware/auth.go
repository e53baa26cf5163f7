package middleware

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yukikurage/catena-api/internal/auth"
	"github.com/yukikurage/catena-api/internal/constants"
	apierrors "github.com/yukikurage/catena-api/internal/errors"
)

// RequireAuth checks if the user is authenticated via session or a bearer
// token. The session wins when both are present.
func RequireAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID, ok := toUserID(session.Get(constants.ContextKeyUserID)); ok {
			c.Set(constants.ContextKeyUserID, userID)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			apierrors.Unauthorized(c, "")
			return
		}

		userID, err := tokens.UserID(strings.TrimSpace(token))
		if err != nil {
			apierrors.Unauthorized(c, "Invalid or expired token")
			return
		}

		// Store user ID in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUserID(userID)
}

func toUserID(value interface{}) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, v != 0
	case uint:
		return uint64(v), v != 0
	case int:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v <= 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"

	apierrors "github.com/yukikurage/catena-api/internal/errors"
	"github.com/yukikurage/catena-api/internal/middleware"
)

func requireUser(c *gin.Context) (uint64, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, false
	}
	return userID, true
}

// requireUserAndID returns the principal and the id path parameter. A
// malformed id reads as a missing record.
func requireUserAndID(c *gin.Context) (uint64, uint64, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return 0, 0, false
	}

	id, ok := middleware.GetIDParam(c, "id")
	if !ok {
		apierrors.NotFound(c, "")
		return 0, 0, false
	}
	return userID, id, true
}

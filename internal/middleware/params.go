package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/yukikurage/catena-api/internal/errors"
)

const contextKeyParamPrefix = "param:"

// RequireIDParam parses the named path parameter as a positive integer id.
// A malformed id is answered like a missing record.
func RequireIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param(name), 10, 64)
		if err != nil || id == 0 {
			apierrors.NotFound(c, "")
			return
		}

		c.Set(contextKeyParamPrefix+name, id)
		c.Next()
	}
}

// GetIDParam returns an id stored by RequireIDParam.
func GetIDParam(c *gin.Context, name string) (uint64, bool) {
	v, exists := c.Get(contextKeyParamPrefix + name)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

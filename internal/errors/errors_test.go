package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		call   func(c *gin.Context)
		status int
		code   string
	}{
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "") }, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"credentials", func(c *gin.Context) { InvalidCredentials(c, "") }, http.StatusForbidden, ErrCodeInvalidCredentials},
		{"not found", func(c *gin.Context) { NotFound(c, "Task not found") }, http.StatusNotFound, ErrCodeNotFound},
		{"validation", func(c *gin.Context) { ValidationFailed(c, []string{"name is required"}) }, http.StatusUnprocessableEntity, ErrCodeInvalidInput},
		{"exists", func(c *gin.Context) { AlreadyExists(c, "", nil) }, http.StatusUnprocessableEntity, ErrCodeAlreadyExists},
		{"window", func(c *gin.Context) { OutsideDueWindow(c, "") }, http.StatusConflict, ErrCodeOutsideDueWindow},
		{"failed", func(c *gin.Context) { OperationFailed(c, "") }, http.StatusBadRequest, ErrCodeOperationFailed},
		{"expired", func(c *gin.Context) { TokenExpired(c, "") }, http.StatusNotAcceptable, ErrCodeTokenExpired},
		{"unavailable", func(c *gin.Context) { ServiceUnavailable(c, "") }, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tc.call(c)

			require.Equal(t, tc.status, w.Code)
			assert.True(t, c.IsAborted())

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

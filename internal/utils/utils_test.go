package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(20)
	require.NoError(t, err)
	b, err := GenerateToken(20)
	require.NoError(t, err)

	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
}

func contextWithQuery(query string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/tasks?"+query, nil)
	return c
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		query  string
		page   int
		limit  int
		offset int
		wants  bool
	}{
		{"", 1, 20, 0, false},
		{"page=3&limit=10", 3, 10, 20, true},
		{"page=0", 1, 20, 0, true},
		{"limit=1000", 1, 20, 0, true},
		{"page=abc&limit=-1", 1, 20, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			c := contextWithQuery(tc.query)
			params := GetPaginationParams(c)
			assert.Equal(t, tc.page, params.Page)
			assert.Equal(t, tc.limit, params.Limit)
			assert.Equal(t, tc.offset, params.Offset)
			assert.Equal(t, tc.wants, WantsPagination(c))
		})
	}
}

package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		perPage, total, wantPages int
	}{
		{10, 0, 0},
		{10, 10, 1},
		{10, 11, 2},
		{0, 5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantPages, NewPagination(1, tt.perPage, tt.total).TotalPages, "%d/%d", tt.total, tt.perPage)
	}
}

func TestPaginated(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		Paginated(c, gin.H{"activities": []string{"A"}}, 2, 1, 3)
	})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, Pagination{Page: 2, PerPage: 1, TotalItems: 3, TotalPages: 3}, *body.Pagination)
	assert.Nil(t, body.Error)
	assert.Equal(t, "req-1", body.Metadata.RequestID)
}

func TestFailFor(t *testing.T) {
	mapping := ErrorMapping{Target: errMissing, Status: http.StatusNotFound, Code: ErrNotFound}

	t.Run("wrapped sentinel uses the mapping", func(t *testing.T) {
		w, body := serve(t, func(c *gin.Context) {
			FailFor(c, fmt.Errorf("lookup: %w", errMissing), mapping)
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, body.Error)
		assert.Equal(t, ErrNotFound, body.Error.Code)
		assert.Equal(t, GetMessage(ErrNotFound), body.Error.Message)
	})

	t.Run("unknown error is internal", func(t *testing.T) {
		w, body := serve(t, func(c *gin.Context) {
			FailFor(c, errors.New("disk"), mapping)
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, ErrInternal, body.Error.Code)
	})
}

func TestFailWithFields(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"per_page": "too large"})
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, body.Data)
	assert.Equal(t, map[string]string{"per_page": "too large"}, body.Error.Fields)
}

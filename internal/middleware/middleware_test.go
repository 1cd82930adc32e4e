package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(body string, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, body)
	})
	return r
}

func TestBrotli_CompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("sector_code:15132 ", 200)
	r := newEngine(body, Brotli())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	assert.Less(t, w.Body.Len(), len(body))

	decoded, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestBrotli_LeavesSmallBodiesAlone(t *testing.T) {
	r := newEngine("ok", Brotli())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestBrotli_SkipsClientsWithoutSupport(t *testing.T) {
	body := strings.Repeat("x", 4096)
	r := newEngine(body, Brotli())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}

func TestAcceptsBrotli(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"gzip, deflate", false},
		{"br", true},
		{"gzip, BR", true},
		{"br;q=0.5, gzip", true},
		{"brotli", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", tt.header)
		assert.Equal(t, tt.want, acceptsBrotli(req), tt.header)
	}
}

func TestRateLimiter_PerClientBudget(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	r := newEngine("ok", rl.Middleware())

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.1:1000"))
	assert.Equal(t, http.StatusOK, do("192.0.2.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1:1002"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, do("192.0.2.2:1000"))
}

func TestRateLimiter_CleanupDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	require.True(t, rl.allow("198.51.100.7"))
	require.False(t, rl.allow("198.51.100.7"))

	rl.mu.Lock()
	rl.visitors["198.51.100.7"].lastSeen = time.Now().Add(-2 * visitorTTL)
	rl.mu.Unlock()
	rl.cleanup()

	assert.True(t, rl.allow("198.51.100.7"), "a fresh bucket starts full")
}

func TestCacheHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	newEngine("ok", CacheControl(300)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "public, max-age=300", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	newEngine("ok", NoStore()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r *gin.Engine, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	r := newRouter(RateLimiter(2, time.Minute))

	assert.Equal(t, http.StatusOK, get(r, "", ""))
	assert.Equal(t, http.StatusOK, get(r, "", ""))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "", ""))
}

func TestKeyedRateLimiterSeparatesKeys(t *testing.T) {
	r := newRouter(KeyedRateLimiter(1, func(c *gin.Context) string { return c.GetHeader("X-Learner") }))

	assert.Equal(t, http.StatusOK, get(r, "X-Learner", "a"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "X-Learner", "a"))
	assert.Equal(t, http.StatusOK, get(r, "X-Learner", "b"))

	// 没有键的请求不限流
	assert.Equal(t, http.StatusOK, get(r, "", ""))
	assert.Equal(t, http.StatusOK, get(r, "", ""))
}

func TestDisabledLimiterPassesThrough(t *testing.T) {
	r := newRouter(RateLimiter(0, time.Minute))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, "", ""))
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := newRouter(CORS([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

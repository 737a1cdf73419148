package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/pkg/logger"
)

// countingLimiter 每个 key 允许前 n 次请求
type countingLimiter struct {
	mu    sync.Mutex
	seen  map[string]int
	err   error
	limit int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = make(map[string]int)
	}
	l.seen[key]++
	l.limit = limit
	return l.seen[key] <= limit, nil
}

func (l *countingLimiter) Remaining(_ context.Context, key string, limit int, _ time.Duration) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rem := limit - l.seen[key]; rem > 0 {
		return rem, nil
	}
	return 0, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(mw...)
	return e
}

func serve(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	e := newEngine(RequestID())
	var fromCtx any
	e.GET("/x", func(c *gin.Context) {
		fromCtx = c.Request.Context().Value(logger.RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = serve(e, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRequestID_RejectsOversizedHeader(t *testing.T) {
	e := newEngine(RequestID())
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	long := make([]byte, maxRequestIDLength+1)
	for i := range long {
		long[i] = 'a'
	}
	req.Header.Set(RequestIDHeader, string(long))
	w := serve(e, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecovery(t *testing.T) {
	e := newEngine(Recovery())
	e.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error","error":{"error_code":"1007"}}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{}
	e := newEngine(RateLimit(RateLimitConfig{Enabled: true, RequestsPerSecond: 2}, limiter))
	e.GET("/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := serve(e, httptest.NewRequest(http.MethodGet, "/v1/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, limiter.limit)
	require.Len(t, limiter.seen, 1)
	for key := range limiter.seen {
		assert.Equal(t, "ratelimit:192.0.2.1:/v1/x", key)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{Enabled: true}, &countingLimiter{err: errors.New("redis down")}))
	e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_DisabledOrNil(t *testing.T) {
	for _, mw := range []gin.HandlerFunc{
		RateLimit(RateLimitConfig{Enabled: false}, &countingLimiter{err: errors.New("unused")}),
		RateLimit(RateLimitConfig{Enabled: true}, nil),
	} {
		e := newEngine(mw)
		e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	e := newEngine(CORS(CORSConfig{}))
	e.PATCH("/v1/tables/characters/1", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/tables/characters/1", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := serve(e, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

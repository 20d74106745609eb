package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
)

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ ratelimit.Limit) (*ratelimit.Result, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return nil, s.err
	}
	return &ratelimit.Result{Allowed: s.allowed, RetryAfter: time.Second}, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinRecoveryMiddleware(), GinLoggingMiddleware(nil))
	r.GET("/ping", append(handlers, func(c *gin.Context) {
		s, _ := auth.FromContext(c.Request.Context())
		c.String(http.StatusOK, s.UserID)
	})...)
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestAuthenticate(t *testing.T) {
	tm := auth.NewTokenManager("secret", "storefront")
	token, err := tm.Issue(auth.Session{UserID: "user-7"}, time.Hour)
	assert.NoError(t, err)

	r := newRouter(Authenticate(tm, "sf_session"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.AddCookie(&http.Cookie{Name: "sf_session", Value: token})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecovery(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, QPS: 1, Burst: 1}

	denied := &stubLimiter{allowed: false}
	w := httptest.NewRecorder()
	newRouter(RateLimitMiddleware(denied, cfg, "checkout")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, denied.keys[0], "ratelimit:checkout:ip:")

	failing := &stubLimiter{err: errors.New("redis down")}
	w = httptest.NewRecorder()
	newRouter(RateLimitMiddleware(failing, cfg, "checkout")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	disabled := &stubLimiter{allowed: false}
	w = httptest.NewRecorder()
	newRouter(RateLimitMiddleware(disabled, config.RateLimitConfig{}, "checkout")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, disabled.keys)
}

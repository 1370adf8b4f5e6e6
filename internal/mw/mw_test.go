package mw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"brewpulse/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Every(time.Hour), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestIPRateLimiter_SeparateBuckets(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 1)
	assert.True(t, l.GetLimiter("10.0.0.1").Allow())
	assert.False(t, l.GetLimiter("10.0.0.1").Allow())
	assert.True(t, l.GetLimiter("10.0.0.2").Allow())
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.Use(Cache(cache.New(time.Minute, time.Minute), time.Minute))
	r.GET("/menu", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"calls": calls})
	})

	first := serve(r, http.MethodGet, "/menu", "")
	second := serve(r, http.MethodGet, "/menu", "")
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Empty(t, first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.NotEmpty(t, second.Header().Get("ETag"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, "/menu", nil)
	req.Header.Set("If-None-Match", second.Header().Get("ETag"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	serve(r, http.MethodGet, "/broken", "")
	serve(r, http.MethodGet, "/broken", "")
	assert.Equal(t, 3, calls, "errors are not cached")
}

type fakeVerifier map[string]auth.Session

func (f fakeVerifier) Verify(token string) (auth.Session, error) {
	if s, ok := f[token]; ok {
		return s, nil
	}
	return auth.Session{}, errors.New("invalid session")
}

func TestRequireSessionAndRole(t *testing.T) {
	v := fakeVerifier{
		"g": {Token: "g", Role: auth.RoleGuest, ID: "guest-1"},
		"a": {Token: "a", Role: auth.RoleAdmin, ID: "admin"},
	}
	r := gin.New()
	r.GET("/me", RequireSession(v), func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.String(http.StatusOK, sess.ID)
	})
	r.GET("/admin", RequireSession(v), RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "bogus").Code)

	w := serve(r, http.MethodGet, "/me", "g")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "guest-1", w.Body.String())

	w = serve(r, http.MethodGet, "/me?access_token=a", "")
	assert.Equal(t, "admin", w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "g").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/admin", "a").Code)
}

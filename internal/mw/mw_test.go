package mw

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"roomcheck-backend/config"
	"roomcheck-backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens() *auth.Service {
	return auth.NewService(config.AuthConfig{Secret: "test-secret", Issuer: "roomcheck"})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	tokens := newTokens()
	r := gin.New()
	r.GET("/host", Authenticate(tokens), RequireRole(auth.RoleHost), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.ID)
	})

	req := httptest.NewRequest(http.MethodGet, "/host", nil)
	w := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	guest, err := tokens.Issue(auth.Principal{ID: "guest-a", Role: auth.RoleGuest}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+guest)
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	hostToken, err := tokens.Issue(auth.Principal{ID: "host-1", Role: auth.RoleHost}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+hostToken)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "host-1", w.Body.String())
}

func TestRateLimiter_PerClient(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(rate.Limit(1), 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, http.StatusOK, serve(r, first).Code)
	assert.Equal(t, http.StatusOK, serve(r, first).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, first).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, http.StatusOK, serve(r, other).Code)
}

func TestRateLimiter_KeysOnPrincipalAfterAuthenticate(t *testing.T) {
	tokens := newTokens()
	r := gin.New()
	r.GET("/", Authenticate(tokens), RateLimiter(rate.Limit(1), 1), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := func(id string) *http.Request {
		token, err := tokens.Issue(auth.Principal{ID: id, Role: auth.RoleGuest}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.10:5555"
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	assert.Equal(t, http.StatusOK, serve(r, request("guest-a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, request("guest-a")).Code)
	// Same address, different caller.
	assert.Equal(t, http.StatusOK, serve(r, request("guest-b")).Code)
}

func TestListingCache_ServesRepeatedGets(t *testing.T) {
	var hits atomic.Int32
	r := gin.New()
	listings := NewListingCache(time.Minute)
	r.GET("/rooms", listings.Serve(), func(c *gin.Context) {
		hits.Add(1)
		c.JSON(http.StatusOK, gin.H{"rooms": []string{"R101"}})
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"rooms":["R101"]}`, w.Body.String())
	assert.EqualValues(t, 1, hits.Load())

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("Cache-Control", "no-cache")
	serve(r, req)
	assert.EqualValues(t, 2, hits.Load())
}

func TestListingCache_InvalidatedBySuccessfulChange(t *testing.T) {
	var version atomic.Int32
	listings := NewListingCache(time.Minute)
	r := gin.New()
	r.GET("/rooms", listings.Serve(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version.Load()})
	})
	r.POST("/rooms/:id/checkin", listings.InvalidateOnSuccess(), func(c *gin.Context) {
		if c.Param("id") == "taken" {
			c.Status(http.StatusConflict)
			return
		}
		version.Add(1)
		c.Status(http.StatusOK)
	})

	assert.JSONEq(t, `{"version":0}`, serve(r, httptest.NewRequest(http.MethodGet, "/rooms", nil)).Body.String())
	assert.Equal(t, 1, listings.Len())

	serve(r, httptest.NewRequest(http.MethodPost, "/rooms/taken/checkin", nil))
	assert.Equal(t, 1, listings.Len())

	serve(r, httptest.NewRequest(http.MethodPost, "/rooms/r101/checkin", nil))
	assert.Zero(t, listings.Len())

	w := serve(r, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"version":1}`, w.Body.String())
}

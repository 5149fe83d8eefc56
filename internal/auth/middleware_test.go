package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddleware(t *testing.T, limiter *RateLimiter) *gin.Engine {
	t.Helper()

	service, _ := setupTestService(t)
	mw := NewMiddleware(service, limiter)

	router := gin.New()
	router.GET("/whoami", mw.RequireIdentity(), func(c *gin.Context) {
		identity := MustGetIdentity(c)
		c.JSON(http.StatusOK, gin.H{
			"principal": identity.Principal(),
			"admin":     identity.IsAdmin,
		})
	})
	router.GET("/admin", mw.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func doRequest(router *gin.Engine, path string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if decorate != nil {
		decorate(req)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_RequireIdentity(t *testing.T) {
	router := setupMiddleware(t, nil)

	tests := []struct {
		name          string
		decorate      func(*http.Request)
		wantStatus    int
		wantPrincipal string
	}{
		{
			name:       "no credentials",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:          "device basic auth",
			decorate:      func(r *http.Request) { r.SetBasicAuth("kobo", "kobo-secret") },
			wantStatus:    http.StatusOK,
			wantPrincipal: "kobo",
		},
		{
			name: "device kosync headers",
			decorate: func(r *http.Request) {
				r.Header.Set(HeaderSyncUser, "kobo")
				r.Header.Set(HeaderSyncKey, HashDeviceSecret("kobo-secret"))
			},
			wantStatus:    http.StatusOK,
			wantPrincipal: "kobo",
		},
		{
			name: "kosync headers with plaintext key",
			decorate: func(r *http.Request) {
				r.Header.Set(HeaderSyncUser, "kobo")
				r.Header.Set(HeaderSyncKey, "kobo-secret")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			decorate:   func(r *http.Request) { r.SetBasicAuth("kobo", "nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown device",
			decorate:   func(r *http.Request) { r.SetBasicAuth("ghost", "kobo-secret") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:          "admin basic auth",
			decorate:      func(r *http.Request) { r.SetBasicAuth(testAdmin, testAdminPassword) },
			wantStatus:    http.StatusOK,
			wantPrincipal: testAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(router, "/whoami", tt.decorate)
			require.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), `realm="kompanion"`)
				return
			}

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantPrincipal, body["principal"])
		})
	}
}

func TestMiddleware_UnauthorizedBodyDoesNotLeakReason(t *testing.T) {
	router := setupMiddleware(t, nil)

	unknown := doRequest(router, "/whoami", func(r *http.Request) { r.SetBasicAuth("ghost", "x") })
	mismatch := doRequest(router, "/whoami", func(r *http.Request) { r.SetBasicAuth("kobo", "x") })

	assert.Equal(t, unknown.Body.String(), mismatch.Body.String())
}

func TestMiddleware_RequireAdmin(t *testing.T) {
	router := setupMiddleware(t, nil)

	rr := doRequest(router, "/admin", func(r *http.Request) { r.SetBasicAuth("kobo", "kobo-secret") })
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(router, "/admin", func(r *http.Request) { r.SetBasicAuth(testAdmin, testAdminPassword) })
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(router, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_LocksOutAfterRepeatedFailures(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     2,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
		CleanupInterval: time.Hour,
	})
	defer limiter.Stop()
	router := setupMiddleware(t, limiter)

	wrong := func(r *http.Request) { r.SetBasicAuth("kobo", "wrong") }
	right := func(r *http.Request) { r.SetBasicAuth("kobo", "kobo-secret") }

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/whoami", wrong).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/whoami", wrong).Code)

	rr := doRequest(router, "/whoami", right)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestMiddleware_MissingCredentialsDoNotCountAsFailures(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     1,
		WindowDuration:  time.Minute,
		LockoutDuration: time.Minute,
		CleanupInterval: time.Hour,
	})
	defer limiter.Stop()
	router := setupMiddleware(t, limiter)

	missingKey := func(r *http.Request) { r.Header.Set(HeaderSyncUser, "kobo") }
	assert.Equal(t, http.StatusUnauthorized, doRequest(router, "/whoami", missingKey).Code)

	rr := doRequest(router, "/whoami", func(r *http.Request) { r.SetBasicAuth("kobo", "kobo-secret") })
	assert.Equal(t, http.StatusOK, rr.Code)
}

type failingAuthenticator struct{}

func (failingAuthenticator) Authenticate(context.Context, Credentials) (*Identity, error) {
	return nil, assert.AnError
}

func (failingAuthenticator) AuthenticateAdmin(context.Context, string, string) (*Identity, error) {
	return nil, assert.AnError
}

func (failingAuthenticator) AuthenticateDevice(context.Context, Credentials) (*Identity, error) {
	return nil, assert.AnError
}

func TestMiddleware_StoreFailureIsInternalError(t *testing.T) {
	router := gin.New()
	router.GET("/whoami", NewMiddleware(failingAuthenticator{}, nil).RequireIdentity(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := doRequest(router, "/whoami", func(r *http.Request) { r.SetBasicAuth("kobo", "kobo-secret") })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCredentialsFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("kobo", "pw")
	req.Header.Set(HeaderSyncUser, "other")
	req.Header.Set(HeaderSyncKey, "digest")

	creds := CredentialsFromRequest(req)
	assert.Equal(t, Credentials{Username: "kobo", Secret: "pw"}, creds)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderSyncUser, " kobo ")
	req.Header.Set(HeaderSyncKey, "ABC")
	creds = CredentialsFromRequest(req)
	assert.Equal(t, Credentials{Username: "kobo", Secret: "ABC", PreHashed: true}, creds)

	assert.Equal(t, Credentials{}, CredentialsFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}

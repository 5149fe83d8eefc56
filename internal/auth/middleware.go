package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys for identity data
const (
	ContextKeyIdentity = "auth_identity"
)

// Header names used by KOReader's kosync plugin. The key is the hex MD5 of
// the device password.
const (
	HeaderSyncUser = "x-auth-user"
	HeaderSyncKey  = "x-auth-key"
)

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "kompanion"

// CredentialsFromRequest decodes credentials from HTTP Basic auth or, when
// absent, from the kosync headers.
func CredentialsFromRequest(r *http.Request) Credentials {
	if username, password, ok := r.BasicAuth(); ok {
		return Credentials{Username: username, Secret: password}
	}
	user := strings.TrimSpace(r.Header.Get(HeaderSyncUser))
	key := strings.TrimSpace(r.Header.Get(HeaderSyncKey))
	if user != "" || key != "" {
		return Credentials{Username: user, Secret: key, PreHashed: true}
	}
	return Credentials{}
}

// Middleware authenticates requests for gin routes.
type Middleware struct {
	auth    Authenticator
	limiter *RateLimiter
}

// NewMiddleware creates the middleware. limiter may be nil.
func NewMiddleware(auth Authenticator, limiter *RateLimiter) *Middleware {
	return &Middleware{auth: auth, limiter: limiter}
}

// RequireIdentity lets any authenticated principal through and stores its
// Identity in the gin context.
func (m *Middleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := m.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireAdmin only lets the administrator through.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			identity, ok = m.authenticate(c)
			if !ok {
				return
			}
		}
		if !identity.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "administrator access required",
			})
			return
		}
		c.Next()
	}
}

// authenticate runs the authenticator and writes the failure response
// itself. The returned bool says whether the request may proceed.
func (m *Middleware) authenticate(c *gin.Context) (*Identity, bool) {
	creds := CredentialsFromRequest(c.Request)
	ip := c.ClientIP()

	if m.limiter != nil && creds.Username != "" {
		if allowed, retryAfter := m.limiter.Allow(ip, creds.Username); !allowed {
			c.Header("Retry-After", formatRetryAfter(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many failed authentication attempts",
				"retry_after": retryAfter.String(),
			})
			return nil, false
		}
	}

	identity, err := m.auth.Authenticate(c.Request.Context(), creds)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			log.Printf("Auth: authentication error for %q: %v", creds.Username, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			return nil, false
		}

		reason := ReasonOf(err)
		log.Printf("Auth: rejected %q from %s: %s", creds.Username, ip, reason)
		if m.limiter != nil && reason != ReasonMissingCredentials {
			if locked, _ := m.limiter.RecordFailure(ip, creds.Username); locked {
				log.Printf("Auth: %q from %s locked out after repeated failures", creds.Username, ip)
			}
		}
		unauthorized(c)
		return nil, false
	}

	if m.limiter != nil {
		m.limiter.RecordSuccess(ip, creds.Username)
	}
	c.Set(ContextKeyIdentity, identity)
	return identity, true
}

// unauthorized never says which half of the credentials was wrong.
func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication required",
	})
}

// formatRetryAfter renders a Retry-After header value in whole seconds.
func formatRetryAfter(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// GetIdentity returns the identity stored by the middleware.
func GetIdentity(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok && identity != nil
}

// MustGetIdentity is for handlers mounted behind RequireIdentity.
func MustGetIdentity(c *gin.Context) *Identity {
	identity, ok := GetIdentity(c)
	if !ok {
		panic("auth: handler mounted without RequireIdentity")
	}
	return identity
}

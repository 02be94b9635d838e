// file: internal/server/middleware/pin.go
// version: 1.0.0
// guid: 6a1f0c83-47d2-4e9b-a5c8-3b7e2d91f046

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookieName holds the signed session issued after a correct PIN.
	SessionCookieName = "mediashare_session"
	// DefaultSessionTTL is how long a PIN session stays valid.
	DefaultSessionTTL = 7 * 24 * time.Hour
	// LoginPath is where unauthenticated browsers are sent.
	LoginPath = "/login"

	sessionIssuer  = "mediashare"
	sessionSubject = "viewer"
)

// ErrInvalidSession is returned for missing, expired or tampered sessions.
var ErrInvalidSession = errors.New("invalid session")

// PINChecker holds the bcrypt hash of the configured PIN. A checker built
// from an empty PIN is disabled and lets everyone through.
type PINChecker struct {
	hash []byte
}

// NewPINChecker hashes pin. An empty pin disables the gate.
func NewPINChecker(pin string) (*PINChecker, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return &PINChecker{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	return &PINChecker{hash: hash}, nil
}

// Enabled reports whether a PIN is required.
func (p *PINChecker) Enabled() bool {
	return p != nil && len(p.hash) > 0
}

// Check compares a submitted PIN with the configured one.
func (p *PINChecker) Check(pin string) bool {
	if !p.Enabled() {
		return true
	}
	return bcrypt.CompareHashAndPassword(p.hash, []byte(strings.TrimSpace(pin))) == nil
}

// SessionManager issues and validates HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a manager. ttl <= 0 uses DefaultSessionTTL.
func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed session token.
func (m *SessionManager) Issue() (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry.
func (m *SessionManager) Validate(token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithSubject(sessionSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// SetCookie stores token on the response.
func (m *SessionManager) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(m.ttl.Seconds()), "/", "", false, true)
}

// ClearCookie removes the session cookie.
func (m *SessionManager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
}

// Authenticated reports whether the request carries a valid session, or no
// PIN is configured at all.
func Authenticated(c *gin.Context, pin *PINChecker, sessions *SessionManager) bool {
	if !pin.Enabled() {
		return true
	}
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	return sessions.Validate(token) == nil
}

// PINGate blocks gated routes until the visitor has entered the PIN. API
// and websocket clients get a JSON 401; browsers are redirected to the login
// page.
func PINGate(pin *PINChecker, sessions *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Authenticated(c, pin, sessions) {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/ws" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "authentication required",
				"code":   "UNAUTHORIZED",
				"status": http.StatusUnauthorized,
			})
			return
		}
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
	}
}

// file: internal/server/middleware/pin_test.go
// version: 1.0.0
// guid: 5e90b2d7-1c4f-4a86-b3e0-7d2f9c18a645

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatedRouter(t *testing.T, pin string) (*gin.Engine, *SessionManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	checker, err := NewPINChecker(pin)
	require.NoError(t, err)
	sessions, err := NewSessionManager("test-secret", time.Hour)
	require.NoError(t, err)

	router := gin.New()
	gated := router.Group("/", PINGate(checker, sessions))
	gated.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "home") })
	gated.GET("/api/metadata", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	gated.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, sessions
}

func TestPINCheckerDisabled(t *testing.T) {
	t.Parallel()

	p, err := NewPINChecker("  ")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.True(t, p.Check("anything"))

	var nilChecker *PINChecker
	assert.False(t, nilChecker.Enabled())
}

func TestPINCheckerCompare(t *testing.T) {
	t.Parallel()

	p, err := NewPINChecker("4321")
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	assert.True(t, p.Check("4321"))
	assert.True(t, p.Check(" 4321 "))
	assert.False(t, p.Check("1234"))
	assert.False(t, p.Check(""))
}

func TestSessionManagerRoundTrip(t *testing.T) {
	t.Parallel()

	m, err := NewSessionManager("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, m.TTL())

	token, err := m.Issue()
	require.NoError(t, err)
	assert.NoError(t, m.Validate(token))

	other, err := NewSessionManager("different", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Validate(token), ErrInvalidSession)
	assert.ErrorIs(t, m.Validate(""), ErrInvalidSession)
	assert.ErrorIs(t, m.Validate("garbage"), ErrInvalidSession)

	_, err = NewSessionManager("", time.Hour)
	assert.Error(t, err)
}

func TestSessionManagerExpiry(t *testing.T) {
	t.Parallel()

	m, err := NewSessionManager("secret", time.Hour)
	require.NoError(t, err)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	token, err := m.Issue()
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	assert.ErrorIs(t, m.Validate(token), ErrInvalidSession)
}

func TestSessionManagerRejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	m, err := NewSessionManager("secret", time.Hour)
	require.NoError(t, err)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionSubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Validate(unsigned), ErrInvalidSession)
}

func TestPINGateOpenWithoutPIN(t *testing.T) {
	t.Parallel()

	router, _ := gatedRouter(t, "")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPINGateRedirectsBrowsers(t *testing.T) {
	t.Parallel()

	router, _ := gatedRouter(t, "1234")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, resp.Code)
	assert.Equal(t, LoginPath, resp.Header().Get("Location"))
}

func TestPINGateRejectsAPIWithJSON(t *testing.T) {
	t.Parallel()

	router, _ := gatedRouter(t, "1234")
	for _, path := range []string{"/api/metadata", "/ws"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
		assert.Contains(t, resp.Body.String(), "authentication required")
	}
}

func TestPINGateAcceptsSession(t *testing.T) {
	t.Parallel()

	router, sessions := gatedRouter(t, "1234")
	token, err := sessions.Issue()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "home", resp.Body.String())

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token + "x"})
	badResp := httptest.NewRecorder()
	router.ServeHTTP(badResp, bad)
	assert.Equal(t, http.StatusFound, badResp.Code)
}

type recordedVisit struct{ ip, ua string }

type visitSink struct{ visits []recordedVisit }

func (v *visitSink) Record(ip, ua string) { v.visits = append(v.visits, recordedVisit{ip, ua}) }

func TestTrackVisitors(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	sink := &visitSink{}
	router := gin.New()
	router.Use(TrackVisitors(sink))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:5555"
	req.Header.Set("User-Agent", "TestAgent/1.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, sink.visits, 1)
	assert.Equal(t, recordedVisit{"192.168.1.9", "TestAgent/1.0"}, sink.visits[0])
}

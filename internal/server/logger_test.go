// file: internal/server/logger_test.go
// version: 2.0.0
// guid: 2e3f4a5b-6c7d-8e9f-0a1b-2c3d4e5f6a7b

package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/mediashare/internal/logging"
)

func TestRequestLoggerAssignsID(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger("/api/zip_status/"))
	router.GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hello", nil))

	id := w.Header().Get(requestIDHeader)
	require.Len(t, id, 26, "ULID")
	assert.Equal(t, id, w.Body.String())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "http", line["component"])
	assert.Equal(t, "/hello", line["path"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, id, line["request_id"])
	assert.Equal(t, "info", line["level"])
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestLogger())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestIsQuiet(t *testing.T) {
	assert.True(t, isQuiet("/api/zip_status/01H", []string{"/api/zip_status/"}))
	assert.False(t, isQuiet("/api/start_zip/x", []string{"/api/zip_status/"}))
	assert.False(t, isQuiet("/", nil))
}

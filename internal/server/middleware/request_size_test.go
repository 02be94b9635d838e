// file: internal/server/middleware/request_size_test.go
// version: 2.0.0
// guid: 8f5ed221-2f04-49aa-86f7-f63fa1732b2d

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMethodHasBody(t *testing.T) {
	t.Parallel()

	assert.True(t, methodHasBody(http.MethodPost))
	assert.True(t, methodHasBody(http.MethodPut))
	assert.True(t, methodHasBody(http.MethodPatch))
	assert.True(t, methodHasBody(http.MethodDelete))
	assert.False(t, methodHasBody(http.MethodGet))
}

func TestMaxRequestBodySize_Middleware(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MaxRequestBodySize(8))
	router.POST("/login", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})
	router.GET("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	over := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bytes.Repeat([]byte("a"), 9)))
	overResp := httptest.NewRecorder()
	router.ServeHTTP(overResp, over)
	assert.Equal(t, http.StatusRequestEntityTooLarge, overResp.Code)

	within := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("pin=1234")))
	withinResp := httptest.NewRecorder()
	router.ServeHTTP(withinResp, within)
	assert.Equal(t, http.StatusOK, withinResp.Code)

	// Chunked bodies without a length are cut off while reading.
	chunked := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bytes.Repeat([]byte("a"), 20)))
	chunked.ContentLength = -1
	chunkedResp := httptest.NewRecorder()
	router.ServeHTTP(chunkedResp, chunked)
	assert.Equal(t, http.StatusRequestEntityTooLarge, chunkedResp.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	getResp := httptest.NewRecorder()
	router.ServeHTTP(getResp, getReq)
	assert.Equal(t, http.StatusOK, getResp.Code)
}

func TestMaxRequestBodySize_DefaultLimit(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MaxRequestBodySize(0))
	router.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader(make([]byte, DefaultBodyLimit+1)))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

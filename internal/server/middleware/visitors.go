// file: internal/server/middleware/visitors.go
// version: 1.0.0
// guid: c2d84e19-5b0a-4f7c-93e6-a81f5d2c0b47

package middleware

import (
	"github.com/gin-gonic/gin"
)

// VisitorRecorder is satisfied by the visitor registry.
type VisitorRecorder interface {
	Record(ip, userAgent string)
}

// TrackVisitors records the client of every request before it is handled.
func TrackVisitors(rec VisitorRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rec != nil {
			rec.Record(c.ClientIP(), c.Request.UserAgent())
		}
		c.Next()
	}
}

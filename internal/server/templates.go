// file: internal/server/templates.go
// version: 2.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html static/*
var webFS embed.FS

var templateFuncs = template.FuncMap{
	"rating": func(r *float64) string {
		if r == nil {
			return ""
		}
		return fmt.Sprintf("%.1f", *r)
	},
	"upper": strings.ToUpper,
}

func (s *Server) setupTemplates() error {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(webFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)
	return nil
}

// setupStaticFiles serves the embedded stylesheet and scripts
func (s *Server) setupStaticFiles() {
	static, err := fs.Sub(webFS, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files missing: %v", err))
	}
	s.router.StaticFS("/static", http.FS(static))

	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			RespondWithError(c, http.StatusNotFound, "endpoint not found", "NOT_FOUND")
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})
}

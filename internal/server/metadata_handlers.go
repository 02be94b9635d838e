// file: internal/server/metadata_handlers.go
// version: 1.0.0
// guid: 9e2d4a71-3b8c-4e06-b5f7-1c0a6d8e2f94

package server

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/metadata"
)

// metadataTarget reads the file/path query pair and resolves the directory
// that holds the item.
func (s *Server) metadataTarget(c *gin.Context) (name, dirAbs string, ok bool) {
	name = c.Query("file")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		RespondWithServiceError(c, "metadata", name, fmt.Errorf("%q: %w", name, metadata.ErrInvalidName))
		return "", "", false
	}
	dirRel := catalog.CleanRel(c.Query("path"))
	dirAbs, err := s.library.Resolve(dirRel)
	if err != nil {
		RespondWithServiceError(c, "directory", dirRel, err)
		return "", "", false
	}
	return name, dirAbs, true
}

func (s *Server) getMetadata(c *gin.Context) {
	name, dirAbs, ok := s.metadataTarget(c)
	if !ok {
		return
	}
	rec, err := s.meta.Resolve(c.Request.Context(), name, dirAbs, ParseQueryBool(c, "is_dir", false))
	if err != nil {
		RespondWithServiceError(c, "metadata", name, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) invalidateMetadata(c *gin.Context) {
	name, dirAbs, ok := s.metadataTarget(c)
	if !ok {
		return
	}
	if err := s.meta.Invalidate(dirAbs, name); err != nil {
		RespondWithServiceError(c, "metadata", name, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// serveMetadataImage serves cached artwork. Only files directly inside a
// .meta directory are reachable, since the route skips the PIN gate.
func (s *Server) serveMetadataImage(c *gin.Context) {
	rel := catalog.CleanRel(c.Param("path"))
	if path.Base(path.Dir(rel)) != catalog.MetaDirName {
		RespondWithNotFound(c, "image", rel)
		return
	}
	abs, info, err := s.library.Stat(rel)
	if err != nil {
		RespondWithServiceError(c, "image", rel, err)
		return
	}
	if info.IsDir() {
		RespondWithNotFound(c, "image", rel)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(abs)
}

// file: internal/server/archive_handlers.go
// version: 1.1.0
// guid: c41f8a6e-2d97-4b3c-8e15-7a09d3f6b2e8

package server

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/logging"
)

func (s *Server) startZip(c *gin.Context) {
	rel := catalog.CleanRel(c.Param("subpath"))
	abs, err := s.library.Resolve(rel)
	if err != nil {
		RespondWithServiceError(c, "directory", rel, err)
		return
	}
	job, err := s.archives.Start(abs)
	if err != nil {
		RespondWithServiceError(c, "directory", rel, err)
		return
	}
	c.JSON(http.StatusOK, StartZipResponse{JobID: job.ID})
}

func (s *Server) zipStatus(c *gin.Context) {
	id := c.Param("id")
	job, err := s.archives.Status(id)
	if err != nil {
		RespondWithServiceError(c, "job", id, err)
		return
	}
	c.JSON(http.StatusOK, zipStatusResponse(job, ParseQueryBool(c, "raw", false)))
}

// downloadZipResult streams a ready archive once, then deletes it. A transfer
// cut short hands the job back so the client can retry.
func (s *Server) downloadZipResult(c *gin.Context) {
	id := c.Param("id")
	f, job, err := s.archives.Open(id)
	if err != nil {
		RespondWithServiceError(c, "job", id, err)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": job.DownloadName()})
	c.DataFromReader(http.StatusOK, job.Size, "application/zip", f, map[string]string{
		"Content-Disposition": disposition,
	})

	if err := f.Close(); err != nil {
		logging.Warn().Err(err).Str("job_id", id).Msg("failed to close archive")
	}
	if !deliveredAll(c, job.Size) {
		logging.Warn().Str("job_id", id).Int("written", c.Writer.Size()).Int64("size", job.Size).Msg("archive download incomplete, keeping result")
		s.archives.Release(id)
		return
	}
	if err := s.archives.Finish(id); err != nil {
		logging.Warn().Err(err).Str("job_id", id).Msg("failed to clean up archive")
	}
}

func deliveredAll(c *gin.Context, size int64) bool {
	if c.Request.Context().Err() != nil {
		return false
	}
	return int64(c.Writer.Size()) == size
}

// file: internal/server/response_types.go
// version: 2.0.0
// guid: 7f8a9b0c-1d2e-3f4a-5b6c-7d8e9f0a1b2c

package server

import (
	"time"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/metadata"
	"github.com/jdfalk/mediashare/internal/operations"
	"github.com/jdfalk/mediashare/internal/visitors"
)

// StartZipResponse is returned when an archive job is accepted.
type StartZipResponse struct {
	JobID string `json:"job_id"`
}

// FavoriteItem is one resolved favorite.
type FavoriteItem struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Year   string `json:"year,omitempty"`
	Poster string `json:"poster,omitempty"`
}

func newFavoriteItem(e catalog.Entry, rec metadata.Record) FavoriteItem {
	title := rec.Title
	if title == "" {
		title = e.Name
	}
	return FavoriteItem{
		Name:   e.Name,
		ID:     e.ID,
		Path:   e.Path,
		URL:    e.URL,
		Title:  title,
		Year:   rec.Year,
		Poster: rec.Poster,
	}
}

// ClientsResponse lists recent visitors.
type ClientsResponse struct {
	Count   int                     `json:"count"`
	Clients []visitors.ClientRecord `json:"clients"`
}

// StatusResponse reports server health.
type StatusResponse struct {
	Status      string           `json:"status"`
	LibraryDir  string           `json:"library_dir"`
	Uptime      string           `json:"uptime"`
	Archive     operations.Stats `json:"archive_queue"`
	ArchiveJobs int              `json:"archive_jobs"`
	Relay       int              `json:"relay_clients"`
	Visitors    int              `json:"visitors"`
}

// zipStatusResponse is what polling clients see for a job.
func zipStatusResponse(job archive.Job, raw bool) archive.Job {
	if raw {
		return job
	}
	return job.Public()
}

func uptimeString(started time.Time) string {
	return time.Since(started).Truncate(time.Second).String()
}

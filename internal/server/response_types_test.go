// file: internal/server/response_types_test.go
// version: 2.0.0
// guid: 8a9b0c1d-2e3f-4a5b-6c7d-8e9f0a1b2c3d

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jdfalk/mediashare/internal/archive"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/metadata"
)

func TestNewFavoriteItemFallsBackToName(t *testing.T) {
	e := catalog.Entry{Name: "Heat.1995.mkv", ID: "Heat1995mkv", Path: "Movies/Heat.1995.mkv", URL: "/play/Movies/Heat.1995.mkv"}

	item := newFavoriteItem(e, metadata.Record{})
	assert.Equal(t, "Heat.1995.mkv", item.Title)

	item = newFavoriteItem(e, metadata.Record{Title: "Heat", Year: "1995", Poster: "/metadata_img/Movies/.meta/Heat.1995.mkv.jpg"})
	assert.Equal(t, "Heat", item.Title)
	assert.Equal(t, "1995", item.Year)
	assert.Equal(t, "/play/Movies/Heat.1995.mkv", item.URL)
}

func TestZipStatusResponse(t *testing.T) {
	job := archive.Job{ID: "j", Status: archive.StatusQueued}
	assert.Equal(t, archive.StatusProcessing, zipStatusResponse(job, false).Status)
	assert.Equal(t, archive.StatusQueued, zipStatusResponse(job, true).Status)
}

func TestUptimeString(t *testing.T) {
	assert.Equal(t, "1m0s", uptimeString(time.Now().Add(-time.Minute-300*time.Millisecond)))
}

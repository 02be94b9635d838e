// file: internal/metadata/record.go
// version: 1.0.0
// guid: 2a7f0c95-e3d1-4b86-a04c-9f5e1b7d2c38

// Package metadata enriches library files and folders with descriptive
// metadata from a remote catalog and caches the result in JSON sidecars.
package metadata

import "time"

// SchemaVersion is bumped when Record gains fields; older sidecars are
// re-fetched once.
const SchemaVersion = 2

// Record is the cached metadata of one file or folder.
type Record struct {
	Title    string   `json:"title"`
	Year     string   `json:"year,omitempty"`
	Poster   string   `json:"poster,omitempty"`
	Backdrop string   `json:"backdrop,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Overview string   `json:"overview,omitempty"`
	IsSeries bool     `json:"is_tv"`

	SchemaVersion int       `json:"schema_version"`
	FetchedAt     time.Time `json:"fetched_at"`
	Fallback      bool      `json:"fallback"`
}

// Complete reports whether the record was written with the current schema.
func (r Record) Complete() bool {
	return r.SchemaVersion >= SchemaVersion && !r.FetchedAt.IsZero()
}

func fallbackRecord(p Parsed, isSeries bool, now time.Time) Record {
	return Record{
		Title:         p.Title,
		Year:          p.Year,
		IsSeries:      isSeries,
		SchemaVersion: SchemaVersion,
		FetchedAt:     now,
		Fallback:      true,
	}
}

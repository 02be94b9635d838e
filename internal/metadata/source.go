// file: internal/metadata/source.go
// version: 2.0.0
// guid: 5e9b1d07-a4c2-4f3e-b8d6-0c7a2e4f9b15

package metadata

import (
	"context"
	"errors"
)

var (
	// ErrNoResults means the remote catalog returned no match.
	ErrNoResults = errors.New("no metadata results")
	// ErrSourceDisabled means no remote catalog is configured.
	ErrSourceDisabled = errors.New("metadata source disabled")
)

// Query is a remote catalog search.
type Query struct {
	Title    string
	Year     string
	IsSeries bool
}

// Match is one remote catalog result. Image paths are relative to the
// source's image base URL.
type Match struct {
	Title        string
	Year         string
	PosterPath   string
	BackdropPath string
	Rating       *float64
	Overview     string
}

// Source is a pluggable remote metadata catalog.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Match, error)
	ImageURL(path string) string
}

// file: internal/metadata/resolver.go
// version: 1.2.0
// guid: 64d2a8f1-7c3b-4e09-b5a6-d8e0f2c91b37

package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jdfalk/mediashare/internal/cache"
	"github.com/jdfalk/mediashare/internal/catalog"
	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metrics"
)

// ErrInvalidName is returned for names that are empty or contain separators.
var ErrInvalidName = errors.New("invalid metadata name")

// Config wires a Cache.
type Config struct {
	// Root is the library root; image refs are relative to it.
	Root   string
	Source Source
	Images *ImageFetcher
	// FallbackTTL re-fetches fallback records older than this. Zero keeps
	// them until invalidated.
	FallbackTTL time.Duration
}

// Cache resolves names to metadata records, serving sidecars first and the
// remote source on a miss.
type Cache struct {
	root        string
	source      Source
	images      *ImageFetcher
	store       SidecarStore
	fallbackTTL time.Duration
	memo        *cache.Cache[Record]
	group       singleflight.Group
	now         func() time.Time
}

// NewCache creates a Cache.
func NewCache(cfg Config) *Cache {
	return &Cache{
		root:        cfg.Root,
		source:      cfg.Source,
		images:      cfg.Images,
		fallbackTTL: cfg.FallbackTTL,
		memo:        cache.New[Record](0),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the metadata for name inside dir. Remote failures never
// surface as errors; they produce a persisted fallback record instead.
func (c *Cache) Resolve(ctx context.Context, name, dir string, isFolder bool) (Record, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Record{}, fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	key := c.store.JSONPath(dir, name)

	if rec, ok := c.memo.Get(key); ok {
		// A sidecar removed on disk forces a fresh lookup.
		if _, err := os.Stat(key); err == nil {
			metrics.IncMetadataLookup("hit")
			return rec, nil
		}
		c.memo.Invalidate(key)
	}

	// Detach from the request so an aborted page load cannot turn a slow
	// lookup into a cached fallback.
	bg := context.WithoutCancel(ctx)
	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.resolve(bg, name, dir, isFolder, key), nil
	})
	return v.(Record), nil
}

func (c *Cache) resolve(ctx context.Context, name, dir string, isFolder bool, key string) Record {
	log := logging.With("metadata")

	rec, ok, err := c.store.Load(dir, name)
	if err != nil {
		log.Warn().Err(err).Str("sidecar", key).Msg("ignoring unreadable sidecar")
	}
	if ok && rec.Complete() && !c.stale(rec) {
		metrics.IncMetadataLookup("hit")
		c.remember(key, rec)
		return rec
	}

	parsed := ParseName(name)
	isSeries := isFolder || parsed.IsSeries

	rec, err = c.lookup(ctx, parsed, isSeries, dir, name)
	if err != nil {
		log.Debug().Err(err).Str("name", name).Msg("remote lookup failed, storing fallback")
		rec = fallbackRecord(parsed, isSeries, c.now())
		metrics.IncMetadataLookup("fallback")
	} else {
		metrics.IncMetadataLookup("remote")
	}

	if err := c.store.Save(dir, name, rec); err != nil {
		log.Error().Err(err).Str("sidecar", key).Msg("failed to persist metadata")
	}
	c.remember(key, rec)
	return rec
}

func (c *Cache) lookup(ctx context.Context, p Parsed, isSeries bool, dir, name string) (Record, error) {
	if c.source == nil {
		return Record{}, ErrSourceDisabled
	}
	matches, err := c.source.Search(ctx, Query{Title: p.Title, Year: p.Year, IsSeries: isSeries})
	if err != nil {
		return Record{}, err
	}
	if len(matches) == 0 {
		return Record{}, ErrNoResults
	}
	m := matches[0]

	rec := Record{
		Title:         m.Title,
		Year:          m.Year,
		Rating:        m.Rating,
		Overview:      m.Overview,
		IsSeries:      isSeries,
		SchemaVersion: SchemaVersion,
		FetchedAt:     c.now(),
	}
	if rec.Title == "" {
		rec.Title = p.Title
	}
	rec.Poster = c.fetchImage(ctx, m.PosterPath, c.store.PosterPath(dir, name))
	rec.Backdrop = c.fetchImage(ctx, m.BackdropPath, c.store.BackdropPath(dir, name))
	return rec, nil
}

// fetchImage downloads one image and returns its /metadata_img ref, or "" if
// there is nothing to fetch or the download failed.
func (c *Cache) fetchImage(ctx context.Context, remotePath, dest string) string {
	if remotePath == "" || c.images == nil {
		return ""
	}
	if err := c.images.Download(ctx, c.source.ImageURL(remotePath), dest); err != nil {
		logging.Debug().Err(err).Str("image", remotePath).Msg("image download failed")
		return ""
	}
	ref, err := ImageRef(c.root, dest)
	if err != nil {
		return ""
	}
	return ref
}

func (c *Cache) stale(rec Record) bool {
	return rec.Fallback && c.fallbackTTL > 0 && c.now().Sub(rec.FetchedAt) > c.fallbackTTL
}

func (c *Cache) remember(key string, rec Record) {
	if rec.Fallback && c.fallbackTTL > 0 {
		remaining := c.fallbackTTL - c.now().Sub(rec.FetchedAt)
		if remaining <= 0 {
			return
		}
		c.memo.SetWithTTL(key, rec, remaining)
		return
	}
	c.memo.Set(key, rec)
}

// Invalidate deletes the sidecar and images for name so the next Resolve
// performs a fresh lookup.
func (c *Cache) Invalidate(dir, name string) error {
	c.memo.Invalidate(c.store.JSONPath(dir, name))
	return c.store.Delete(dir, name)
}

// Forget drops every in-memory record; sidecars on disk are kept.
func (c *Cache) Forget() {
	c.memo.InvalidateAll()
}

// ForgetDir drops in-memory records for items directly inside dir.
func (c *Cache) ForgetDir(dir string) int {
	prefix := filepath.Join(dir, catalog.MetaDirName) + string(filepath.Separator)
	return c.memo.InvalidatePrefix(prefix)
}

// Sweep drops expired in-memory records and returns how many went.
func (c *Cache) Sweep() int {
	return c.memo.Sweep()
}

// ImageRef maps an image file under root to its /metadata_img URL.
func ImageRef(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", catalog.ErrOutsideRoot
	}
	return "/metadata_img/" + catalog.EscapePath(rel), nil
}

// file: internal/catalog/favorites.go
// version: 1.0.0
// guid: d47a0e2b-91c3-4f6e-8a5d-2b7c6e1f9034

package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jdfalk/mediashare/internal/cache"
	"github.com/jdfalk/mediashare/internal/logging"
)

const indexKey = "favorites"

// DefaultIndexTTL bounds how long a tree walk is reused when no watcher is
// running to invalidate it.
const DefaultIndexTTL = 10 * time.Minute

// Index resolves favorites ids to files anywhere under the library.
type Index struct {
	lib   *Library
	cache *cache.Cache[map[string][]Entry]
	group singleflight.Group
}

// NewIndex returns an Index over lib. ttl <= 0 uses DefaultIndexTTL.
func NewIndex(lib *Library, ttl time.Duration) *Index {
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	return &Index{lib: lib, cache: cache.New[map[string][]Entry](ttl)}
}

// Lookup returns every file whose EntryID matches one of ids, in id order and
// then by path. Unknown ids are skipped and duplicates are returned once.
func (x *Index) Lookup(ids []string) []Entry {
	wanted := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return []Entry{}
	}

	byID := x.snapshot()
	out := make([]Entry, 0, len(wanted))
	for _, id := range wanted {
		out = append(out, byID[id]...)
	}
	return out
}

// Invalidate drops the cached walk so the next Lookup rebuilds it.
func (x *Index) Invalidate() {
	x.cache.InvalidateAll()
}

func (x *Index) snapshot() map[string][]Entry {
	if m, ok := x.cache.Get(indexKey); ok {
		return m
	}
	v, _, _ := x.group.Do(indexKey, func() (any, error) {
		m := x.build()
		x.cache.Set(indexKey, m)
		return m, nil
	})
	return v.(map[string][]Entry)
}

func (x *Index) build() map[string][]Entry {
	start := time.Now()
	byID := make(map[string][]Entry)
	root := x.lib.Root()
	count := 0

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != root && d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsListable(name, false) {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil
		}
		rel, err := x.lib.Rel(p)
		if err != nil {
			return nil
		}
		e := newEntry(parentOf(rel), name, info)
		byID[e.ID] = append(byID[e.ID], e)
		count++
		return nil
	})

	for id := range byID {
		sort.SliceStable(byID[id], func(i, j int) bool { return byID[id][i].Path < byID[id][j].Path })
	}
	log := logging.With("catalog")
	log.Debug().
		Int("files", count).
		Dur("elapsed", time.Since(start)).
		Msg("favorites index built")
	return byID
}

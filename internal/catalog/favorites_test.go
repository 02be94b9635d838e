// file: internal/catalog/favorites_test.go
// version: 1.0.0
// guid: 91e4b2c7-58a0-4d3f-b6e9-0c2a7f5d13e8

package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestIndexLookup(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeFile(t, filepath.Join(root, "Dune (2021).mkv"), 1, time.Time{})
	writeFile(t, filepath.Join(root, "Shows", "Season 1", "ep 1.mkv"), 1, time.Time{})
	writeFile(t, filepath.Join(root, "Other", "ep_1.mkv"), 1, time.Time{})
	writeFile(t, filepath.Join(root, ".meta", "Dune2021mkv.mkv"), 1, time.Time{})
	writeFile(t, filepath.Join(root, "Shows", "ep 1.srt"), 1, time.Time{})

	idx := NewIndex(lib, time.Minute)

	got := idx.Lookup([]string{"Dune2021mkv", "ep1mkv", "nope", "Dune2021mkv", " "})
	assert.Equal(t, []string{"Dune (2021).mkv", "Other/ep_1.mkv", "Shows/Season 1/ep 1.mkv"}, paths(got))
	assert.Equal(t, "/play/Shows/Season%201/ep%201.mkv", got[2].URL)

	assert.Empty(t, idx.Lookup(nil))
}

func TestIndexInvalidate(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeFile(t, filepath.Join(root, "first.mkv"), 1, time.Time{})

	idx := NewIndex(lib, time.Hour)
	require.Len(t, idx.Lookup([]string{"firstmkv"}), 1)

	writeFile(t, filepath.Join(root, "second.mkv"), 1, time.Time{})
	assert.Empty(t, idx.Lookup([]string{"secondmkv"}), "cached walk is reused until invalidated")

	idx.Invalidate()
	assert.Len(t, idx.Lookup([]string{"secondmkv"}), 1)

	require.NoError(t, os.Remove(filepath.Join(root, "first.mkv")))
	idx.Invalidate()
	assert.Empty(t, idx.Lookup([]string{"firstmkv"}))
}

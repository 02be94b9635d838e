// file: internal/catalog/listing.go
// version: 1.0.0
// guid: 0c6d91b4-2e57-4f8a-bd13-7a4e95c2f630

package catalog

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"

	"github.com/jdfalk/mediashare/internal/logging"
)

// SortMode orders a listing.
type SortMode string

const (
	SortByName SortMode = "name"
	SortByDate SortMode = "date"
	SortBySize SortMode = "size"
)

// ParseSortMode maps a query value to a SortMode; unknown values sort by name.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortByDate:
		return SortByDate
	case SortBySize:
		return SortBySize
	default:
		return SortByName
	}
}

// hiddenExtensions are sidecar and helper files that never appear in listings.
var hiddenExtensions = map[string]bool{
	".srt":  true,
	".vtt":  true,
	".json": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".zip":  true,
	".py":   true,
	".txt":  true,
	".exe":  true,
	".spec": true,
	".nfo":  true,
	".part": true,
}

// IsListable reports whether a directory entry name belongs in a listing.
func IsListable(name string, isDir bool) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if isDir {
		return true
	}
	return !hiddenExtensions[strings.ToLower(filepath.Ext(name))]
}

// Entry is one child of a listed directory.
type Entry struct {
	Name          string    `json:"name"`
	IsDir         bool      `json:"is_dir"`
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	SizeHuman     string    `json:"size_human"`
	ModifiedAt    time.Time `json:"modified_at"`
	ModifiedLabel string    `json:"modified_label"`
	URL           string    `json:"url"`
}

// Listing is the sorted content of one directory.
type Listing struct {
	Path        string   `json:"path"`
	ParentPath  string   `json:"parent_path"`
	Entries     []Entry  `json:"entries"`
	FolderCount int      `json:"folder_count"`
	FileCount   int      `json:"file_count"`
	Sort        SortMode `json:"sort"`
	Query       string   `json:"query,omitempty"`
}

// EntryID derives the favorites id of a name by dropping every rune that is
// not a letter or a digit. Different names can share an id.
func EntryID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// List returns the immediate children of rel sorted by mode. A non-empty
// filter keeps only names that fuzzily match it. Entries that fail to stat
// are dropped.
func (l *Library) List(rel string, mode SortMode, filter string) (*Listing, error) {
	abs, info, err := l.Stat(rel)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", CleanRel(rel), ErrNotFound)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", CleanRel(rel), err)
	}

	base := CleanRel(rel)
	filter = strings.TrimSpace(filter)
	listing := &Listing{
		Path:       base,
		ParentPath: parentOf(base),
		Entries:    make([]Entry, 0, len(dirents)),
		Sort:       mode,
		Query:      filter,
	}

	for _, de := range dirents {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		fi, err := os.Stat(filepath.Join(abs, name))
		if err != nil {
			logging.Debug().Err(err).Str("name", name).Msg("dropping unreadable entry")
			continue
		}
		if !IsListable(name, fi.IsDir()) {
			continue
		}
		if filter != "" && !fuzzy.MatchNormalizedFold(filter, name) {
			continue
		}
		listing.Entries = append(listing.Entries, newEntry(base, name, fi))
		if fi.IsDir() {
			listing.FolderCount++
		} else {
			listing.FileCount++
		}
	}

	SortEntries(listing.Entries, mode)
	return listing, nil
}

func newEntry(dir, name string, fi os.FileInfo) Entry {
	rel := path.Join(dir, name)
	target := "/play/"
	if fi.IsDir() {
		target = "/view/"
	}
	return Entry{
		Name:          name,
		IsDir:         fi.IsDir(),
		ID:            EntryID(name),
		Path:          rel,
		Size:          fi.Size(),
		SizeHuman:     humanize.IBytes(uint64(max(fi.Size(), 0))),
		ModifiedAt:    fi.ModTime(),
		ModifiedLabel: fi.ModTime().Format("02 Jan"),
		URL:           target + EscapePath(rel),
	}
}

// SortEntries orders entries in place. Name sorting is case-insensitive with
// the raw name as tiebreak; date and size sort newest/largest first.
func SortEntries(entries []Entry, mode SortMode) {
	switch mode {
	case SortByDate:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
		})
	case SortBySize:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Size > entries[j].Size
		})
	default:
		fold := cases.Fold()
		keys := make(map[string]string, len(entries))
		for _, e := range entries {
			keys[e.Name] = fold.String(e.Name)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			ki, kj := keys[entries[i].Name], keys[entries[j].Name]
			if ki != kj {
				return ki < kj
			}
			return entries[i].Name < entries[j].Name
		})
	}
}

func parentOf(rel string) string {
	if rel == "" {
		return ""
	}
	parent := path.Dir(rel)
	if parent == "." {
		return ""
	}
	return parent
}

func pathEscape(segment string) string {
	return url.PathEscape(segment)
}

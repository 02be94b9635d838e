// file: internal/catalog/player.go
// version: 1.0.0
// guid: 8e13f7a2-64c9-4d05-9b8e-f2a1c07d3b56

package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/dhowden/tag"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/jdfalk/mediashare/internal/logging"
)

// Subtitle is a subtitle file found next to a media file.
type Subtitle struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Lang  string `json:"lang"`
	Src   string `json:"src"`
}

// EmbeddedTags are tags read from the media container, when present.
type EmbeddedTags struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`
	Format string `json:"format,omitempty"`
}

// PlayInfo is everything the player page needs for one file.
type PlayInfo struct {
	Name      string        `json:"name"`
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	Dir       string        `json:"dir"`
	Size      int64         `json:"size"`
	SizeHuman string        `json:"size_human"`
	Quality   string        `json:"quality"`
	Container string        `json:"container"`
	StreamURL string        `json:"stream_url"`
	VLCURL    string        `json:"vlc_url"`
	Subtitles []Subtitle    `json:"subtitles"`
	Tags      *EmbeddedTags `json:"tags,omitempty"`
}

// Play builds the player details for the file at rel. serverURL is the
// externally reachable base ("http://host:port") used for the VLC link.
func (l *Library) Play(rel, serverURL string) (*PlayInfo, error) {
	abs, info, err := l.Stat(rel)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", CleanRel(rel), ErrNotFound)
	}

	clean := CleanRel(rel)
	name := path.Base(clean)
	escaped := EscapePath(clean)

	subs, err := l.Subtitles(clean)
	if err != nil {
		logging.Warn().Err(err).Str("path", clean).Msg("subtitle scan failed")
		subs = []Subtitle{}
	}

	return &PlayInfo{
		Name:      name,
		ID:        EntryID(name),
		Path:      clean,
		Dir:       parentOf(clean),
		Size:      info.Size(),
		SizeHuman: humanize.IBytes(uint64(max(info.Size(), 0))),
		Quality:   GuessQuality(name),
		Container: ContainerOf(name),
		StreamURL: "/download/" + escaped,
		VLCURL:    "vlc://" + strings.TrimSuffix(serverURL, "/") + "/download/" + escaped,
		Subtitles: subs,
		Tags:      readTags(abs),
	}, nil
}

// GuessQuality infers a resolution label from resolution tokens in a name.
func GuessQuality(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "2160"), strings.Contains(lower, "4k"):
		return "4K"
	case strings.Contains(lower, "1080"):
		return "1080p"
	case strings.Contains(lower, "720"):
		return "720p"
	default:
		return "SD"
	}
}

// ContainerOf returns the upper-case extension without the dot.
func ContainerOf(name string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Subtitles lists .srt/.vtt siblings of the media file at rel whose
// lower-cased name starts with the media base name.
func (l *Library) Subtitles(rel string) ([]Subtitle, error) {
	clean := CleanRel(rel)
	dirRel := parentOf(clean)
	dirAbs, err := l.Resolve(dirRel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dirRel, err)
	}

	mediaName := path.Base(clean)
	base := strings.ToLower(strings.TrimSuffix(mediaName, filepath.Ext(mediaName)))
	subs := []Subtitle{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		ext := filepath.Ext(lower)
		if ext != ".srt" && ext != ".vtt" {
			continue
		}
		if !strings.HasPrefix(lower, base) {
			continue
		}
		subRel := path.Join(dirRel, e.Name())
		tagValue, label := subtitleLanguage(e.Name(), base, filepath.Join(dirAbs, e.Name()))
		subs = append(subs, Subtitle{
			Name:  e.Name(),
			Label: label,
			Lang:  tagValue,
			Src:   "/download/" + EscapePath(subRel),
		})
	}
	return subs, nil
}

var tokenSplit = regexp.MustCompile(`[.\-_\s\[\]()]+`)

// subtitleLanguage names the language of a subtitle file, first from a
// language token after the media base name, then from the file content.
func subtitleLanguage(fileName, mediaBase, absPath string) (string, string) {
	lower := strings.ToLower(fileName)
	rest := strings.TrimSuffix(strings.TrimPrefix(lower, mediaBase), filepath.Ext(lower))
	for _, tok := range tokenSplit.Split(rest, -1) {
		if len(tok) < 2 || len(tok) > 3 {
			continue
		}
		base, err := language.ParseBase(tok)
		if err != nil {
			continue
		}
		t, err := language.Compose(base)
		if err != nil || t == language.Und {
			continue
		}
		if name := display.English.Languages().Name(t); name != "" {
			return base.String(), name
		}
	}

	if t, ok := detectSubtitleLanguage(absPath); ok {
		return t.String(), display.English.Languages().Name(t)
	}
	return "und", "Subtitle"
}

var cueLine = regexp.MustCompile(`^(\d+|WEBVTT.*|NOTE.*|[\d:.,]+\s*-->\s*[\d:.,]+.*)$`)

// detectSubtitleLanguage samples cue text and runs language detection on it.
func detectSubtitleLanguage(absPath string) (language.Tag, bool) {
	f, err := os.Open(absPath)
	if err != nil {
		return language.Und, false
	}
	defer f.Close()

	var sample strings.Builder
	scanner := bufio.NewScanner(io.LimitReader(f, 16*1024))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || cueLine.MatchString(line) {
			continue
		}
		sample.WriteString(line)
		sample.WriteByte(' ')
	}
	if sample.Len() == 0 {
		return language.Und, false
	}

	info := whatlanggo.Detect(sample.String())
	if !info.IsReliable() {
		return language.Und, false
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und, false
	}
	t := language.All.Make(code)
	if t == language.Und {
		return language.Und, false
	}
	return t, true
}

func readTags(absPath string) *EmbeddedTags {
	f, err := os.Open(absPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	t := &EmbeddedTags{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Year:   m.Year(),
		Format: string(m.Format()),
	}
	if t.Title == "" && t.Artist == "" && t.Album == "" && t.Year == 0 {
		return nil
	}
	return t
}

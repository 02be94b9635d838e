// file: internal/metadata/parse.go
// version: 1.0.0
// guid: c81e4a36-5b0f-4d92-8e7a-13f6d9c0b2a4

package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Parsed is the title guess derived from a file or folder name.
type Parsed struct {
	Title    string
	Year     string
	IsSeries bool
}

var (
	reSeason = regexp.MustCompile(`(?i)\b(s\d+(e\d+)?|season)\b`)
	reYear   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reSpaces = regexp.MustCompile(`\s+`)

	// Release tags dropped from titles as whole words.
	junkTokens = []string{"1080p", "720p", "480p", "2160p", "4k", "HDR", "Bluray", "BRRip", "WebRip", "WEB-DL", "x264", "x265", "HEVC", "AAC", "RARBG", "PSA", "YIFY"}
	reJunk     = buildJunkPattern(junkTokens)

	punctuation = strings.NewReplacer(".", " ", "_", " ", "(", "", ")", "", "[", "", "]", "")
)

func buildJunkPattern(tokens []string) *regexp.Regexp {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// ParseName guesses a title, year and series flag from a file or folder name.
// Everything from the first 19xx/20xx year token onward is cut from the title.
func ParseName(name string) Parsed {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = name
	}

	p := Parsed{IsSeries: reSeason.MatchString(base)}

	title := base
	if loc := reYear.FindStringIndex(base); loc != nil {
		p.Year = base[loc[0]:loc[1]]
		title = base[:loc[0]]
		if strings.TrimSpace(punctuation.Replace(title)) == "" {
			// Name starts with the year ("2001 A Space Odyssey")
			title = base[loc[1]:]
		}
	}

	title = punctuation.Replace(title)
	title = reJunk.ReplaceAllString(title, "")
	title = strings.TrimSpace(reSpaces.ReplaceAllString(title, " "))
	if title == "" {
		title = strings.TrimSpace(base)
	}
	p.Title = title
	return p
}

// file: internal/catalog/player_test.go
// version: 1.0.0
// guid: 3d5b8f17-a2e4-4c09-9761-e8f0c4a2b5d9

package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuessQuality(t *testing.T) {
	assert.Equal(t, "4K", GuessQuality("Dune.2021.2160p.mkv"))
	assert.Equal(t, "4K", GuessQuality("Dune 4K.mkv"))
	assert.Equal(t, "1080p", GuessQuality("Dune.2021.1080p.WEBRip.mkv"))
	assert.Equal(t, "720p", GuessQuality("dune.720p.mp4"))
	assert.Equal(t, "SD", GuessQuality("home video.avi"))
}

func TestContainerOf(t *testing.T) {
	assert.Equal(t, "MKV", ContainerOf("a.mkv"))
	assert.Equal(t, "MP4", ContainerOf("dir.x/a.Mp4"))
	assert.Equal(t, "", ContainerOf("README"))
}

func TestSubtitles(t *testing.T) {
	lib, root := newTestLibrary(t)
	dir := filepath.Join(root, "Movies")
	writeFile(t, filepath.Join(dir, "Movie.2020.mkv"), 5, time.Time{})
	writeFile(t, filepath.Join(dir, "movie.2020.eng.srt"), 5, time.Time{})
	writeFile(t, filepath.Join(dir, "Movie.2020.fr.vtt"), 5, time.Time{})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Movie.2020.srt"), []byte("1\n00:00:01,000 --> 00:00:02,000\n12345\n"), 0o644))
	writeFile(t, filepath.Join(dir, "Other.srt"), 5, time.Time{})
	writeFile(t, filepath.Join(dir, "Movie.2020.nfo"), 5, time.Time{})

	subs, err := lib.Subtitles("Movies/Movie.2020.mkv")
	require.NoError(t, err)
	require.Len(t, subs, 3)

	byName := map[string]Subtitle{}
	for _, s := range subs {
		byName[s.Name] = s
	}

	eng := byName["movie.2020.eng.srt"]
	assert.Equal(t, "English", eng.Label)
	assert.Equal(t, "en", eng.Lang)
	assert.Equal(t, "/download/Movies/movie.2020.eng.srt", eng.Src)

	fr := byName["Movie.2020.fr.vtt"]
	assert.Equal(t, "French", fr.Label)
	assert.Equal(t, "fr", fr.Lang)

	plain := byName["Movie.2020.srt"]
	assert.Equal(t, "Subtitle", plain.Label)
	assert.Equal(t, "und", plain.Lang)
}

func TestPlay(t *testing.T) {
	lib, root := newTestLibrary(t)
	writeFile(t, filepath.Join(root, "Films", "My Film 1080p.mkv"), 2048, time.Time{})
	writeFile(t, filepath.Join(root, "Films", "My Film 1080p.en.srt"), 1, time.Time{})

	info, err := lib.Play("Films/My Film 1080p.mkv", "http://192.168.1.5:8000/")
	require.NoError(t, err)

	assert.Equal(t, "My Film 1080p.mkv", info.Name)
	assert.Equal(t, "MyFilm1080pmkv", info.ID)
	assert.Equal(t, "Films", info.Dir)
	assert.Equal(t, "1080p", info.Quality)
	assert.Equal(t, "MKV", info.Container)
	assert.Equal(t, "2.0 KiB", info.SizeHuman)
	assert.Equal(t, "/download/Films/My%20Film%201080p.mkv", info.StreamURL)
	assert.Equal(t, "vlc://http://192.168.1.5:8000/download/Films/My%20Film%201080p.mkv", info.VLCURL)
	require.Len(t, info.Subtitles, 1)
	assert.Equal(t, "English", info.Subtitles[0].Label)
	assert.Nil(t, info.Tags, "plain bytes carry no embedded tags")
}

func TestPlayErrors(t *testing.T) {
	lib, root := newTestLibrary(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "Films"), 0o755))

	_, err := lib.Play("Films", "http://x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.Play("Films/missing.mkv", "http://x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.Play("../../etc/passwd", "http://x")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

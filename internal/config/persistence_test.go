// file: internal/config/persistence_test.go
// version: 2.0.0
// guid: 3e1f7a92-5c0d-4b8e-9f26-a14d6c8b2e57

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	assert.Empty(t, s.LastFolder)
}

func TestSaveAndLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	require.NoError(t, SaveSettings(path, Settings{LastFolder: "/srv/movies"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_folder"`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/movies", s.LastFolder)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestLoadSettingsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestResolveLibraryDir(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.json")

	got, err := ResolveLibraryDir("", settings)
	require.NoError(t, err)
	assert.Empty(t, got)

	library := filepath.Join(dir, "library")
	require.NoError(t, os.Mkdir(library, 0o755))
	require.NoError(t, SaveSettings(settings, Settings{LastFolder: library}))

	got, err = ResolveLibraryDir("", settings)
	require.NoError(t, err)
	assert.Equal(t, library, got)

	// Explicit wins over remembered
	got, err = ResolveLibraryDir(dir, settings)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	// Remembered folder that vanished is ignored
	require.NoError(t, os.RemoveAll(library))
	got, err = ResolveLibraryDir("", settings)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInstanceLock(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.json")

	first, err := AcquireInstanceLock(settings)
	require.NoError(t, err)

	_, err = AcquireInstanceLock(settings)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())

	again, err := AcquireInstanceLock(settings)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestWriteDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediashare.yaml")
	require.NoError(t, WriteDefaultConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# mediashare configuration"))
	assert.Contains(t, content, "archive_workers: 2")
	assert.Contains(t, content, "port: \"8000\"")

	assert.Error(t, WriteDefaultConfigFile(path), "existing file must not be overwritten")
}

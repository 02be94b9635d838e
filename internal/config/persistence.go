// file: internal/config/persistence.go
// version: 2.0.0
// guid: 9c8d7e6f-5a4b-3c2d-1e0f-9a8b7c6d5e4f

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// Settings is the small state file that remembers the last library folder.
type Settings struct {
	LastFolder string `json:"last_folder"`
}

// ErrAlreadyRunning is returned when another server holds the instance lock.
var ErrAlreadyRunning = errors.New("another mediashare instance is already running")

// LoadSettings reads the settings file. A missing or empty file yields zero
// Settings and no error; a corrupt file returns an error for the caller to log.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes the settings file atomically (tmp file + rename).
func SaveSettings(path string, s Settings) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}

// ResolveLibraryDir picks the library root: an explicit value wins, otherwise
// the last folder remembered in the settings file, if it still exists.
func ResolveLibraryDir(explicit, settingsPath string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", fmt.Errorf("resolve library dir: %w", err)
		}
		return abs, nil
	}
	s, err := LoadSettings(settingsPath)
	if err != nil {
		return "", err
	}
	if s.LastFolder == "" {
		return "", nil
	}
	if info, err := os.Stat(s.LastFolder); err != nil || !info.IsDir() {
		return "", nil
	}
	return s.LastFolder, nil
}

// InstanceLock guards against two servers sharing one settings file.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes a non-blocking lock next to the settings file.
func AcquireInstanceLock(settingsPath string) (*InstanceLock, error) {
	lockPath := settingsPath + ".lock"
	l := flock.New(lockPath)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{lock: l}, nil
}

// Release drops the instance lock.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// WriteDefaultConfigFile writes a YAML config file populated with defaults.
func WriteDefaultConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	doc := map[string]any{
		"library_dir":           "",
		"host":                  DefaultHost,
		"port":                  DefaultPort,
		"pin":                   "",
		"settings_file":         DefaultSettingsFile,
		"tmdb_api_key":          "",
		"tmdb_base_url":         DefaultTMDBBaseURL,
		"tmdb_image_base_url":   DefaultTMDBImageBaseURL,
		"metadata_timeout":      DefaultMetadataTimeout.String(),
		"metadata_fallback_ttl": "0s",
		"metadata_rate_per_sec": 4,
		"archive_workers":       DefaultArchiveWorkers,
		"archive_queue_size":    DefaultArchiveQueueSize,
		"archive_chunk_bytes":   DefaultArchiveChunkBytes,
		"archive_result_ttl":    DefaultArchiveResultTTL.String(),
		"visitor_idle_ttl":      DefaultVisitorIdleTTL.String(),
		"rate_limit_per_minute": 600,
		"log_level":             "info",
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	header := "# mediashare configuration\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o600)
}

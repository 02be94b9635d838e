// file: internal/metadata/sidecar.go
// version: 1.0.0
// guid: a93f6e21-0b8d-4c57-b2e4-6d1c9f7a3e80

package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// MetaDirName is the sidecar directory created next to media.
const MetaDirName = ".meta"

// SidecarStore reads and writes <dir>/.meta/<name>.json files.
type SidecarStore struct{}

// JSONPath is the sidecar file for name inside dir.
func (SidecarStore) JSONPath(dir, name string) string {
	return filepath.Join(dir, MetaDirName, name+".json")
}

// PosterPath is where the poster image for name is stored.
func (SidecarStore) PosterPath(dir, name string) string {
	return filepath.Join(dir, MetaDirName, name+".jpg")
}

// BackdropPath is where the backdrop image for name is stored.
func (SidecarStore) BackdropPath(dir, name string) string {
	return filepath.Join(dir, MetaDirName, name+".backdrop.jpg")
}

// Load returns the stored record. ok is false when no sidecar exists; a
// sidecar that cannot be decoded returns an error.
func (s SidecarStore) Load(dir, name string) (rec Record, ok bool, err error) {
	data, err := os.ReadFile(s.JSONPath(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read sidecar: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode sidecar %s: %w", name, err)
	}
	return rec, true, nil
}

// Save writes the record atomically, creating the .meta directory if needed.
func (s SidecarStore) Save(dir, name string, rec Record) error {
	path := s.JSONPath(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}
	return nil
}

// Delete removes the sidecar and its images. Missing files are ignored.
func (s SidecarStore) Delete(dir, name string) error {
	var errs []error
	for _, p := range []string{s.JSONPath(dir, name), s.PosterPath(dir, name), s.BackdropPath(dir, name)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

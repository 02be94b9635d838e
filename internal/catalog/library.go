// file: internal/catalog/library.go
// version: 1.0.0
// guid: 5f2a8c1e-7d34-4b90-a6e1-3c9f0d2b7e18

// Package catalog turns a library directory into sorted listings, player
// details and favorites lookups. Every path it accepts is relative to the
// library root and is rejected if it resolves outside of it.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MetaDirName is the sidecar directory kept next to media files.
const MetaDirName = ".meta"

var (
	// ErrNotFound means the requested path does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrOutsideRoot means the requested path escapes the library root.
	ErrOutsideRoot = errors.New("path escapes library root")
	// ErrNoLibrary means no library folder has been selected yet.
	ErrNoLibrary = errors.New("no library folder selected")
)

// Library is a library root on disk.
type Library struct {
	root string
}

// New returns a Library rooted at dir. The root is made absolute and its
// symlinks resolved so containment checks compare canonical paths.
func New(dir string) (*Library, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrNoLibrary
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid library root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("library root %s: %w", abs, ErrNotFound)
		}
		return nil, fmt.Errorf("library root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}
	return &Library{root: abs}, nil
}

// Root returns the canonical library root.
func (l *Library) Root() string {
	return l.root
}

// CleanRel normalizes a request path to a slash-separated path relative to
// the root ("" for the root itself). It does not touch the filesystem.
func CleanRel(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = path.Clean("/" + rel)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "." {
		return ""
	}
	return rel
}

// Resolve maps a relative request path to an absolute path inside the root.
// Paths containing ".." segments that climb above the root, and symlinks that
// point outside it, return ErrOutsideRoot.
func (l *Library) Resolve(rel string) (string, error) {
	raw := strings.ReplaceAll(rel, "\\", "/")
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return "", ErrOutsideRoot
		}
	}
	if filepath.IsAbs(rel) && !strings.HasPrefix(raw, "/") {
		// Windows volume paths such as C:\x
		return "", ErrOutsideRoot
	}

	abs := filepath.Join(l.root, filepath.FromSlash(CleanRel(raw)))
	if !l.contains(abs) {
		return "", ErrOutsideRoot
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		if !l.contains(resolved) {
			return "", ErrOutsideRoot
		}
	}
	return abs, nil
}

// Rel returns the slash-separated path of abs relative to the root.
func (l *Library) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// Stat resolves rel and stats it, mapping a missing path to ErrNotFound.
func (l *Library) Stat(rel string) (string, os.FileInfo, error) {
	abs, err := l.Resolve(rel)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%s: %w", CleanRel(rel), ErrNotFound)
		}
		return "", nil, fmt.Errorf("stat %s: %w", CleanRel(rel), err)
	}
	return abs, info, nil
}

func (l *Library) contains(abs string) bool {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// EscapePath URL-escapes each segment of a slash-separated relative path.
func EscapePath(rel string) string {
	if rel == "" {
		return ""
	}
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = pathEscape(p)
	}
	return strings.Join(parts, "/")
}

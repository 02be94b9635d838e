// file: internal/archive/zip.go
// version: 1.0.0
// guid: e2b7f094-6c1d-4a38-95f3-0a8d4c6e1b72

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// DefaultChunkBytes is the copy buffer used when none is configured.
const DefaultChunkBytes = 10 * 1024 * 1024

// ProgressFunc receives bytes written so far and the total to write.
type ProgressFunc func(written, total int64)

type fileEntry struct {
	path string
	name string
	size int64
	info fs.FileInfo
}

// collect walks src and returns the regular files to archive with their
// forward-slash entry names. Directories named .meta are skipped; symlinks
// are not followed.
func collect(src string) ([]fileEntry, int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, 0, err
	}
	if !info.IsDir() {
		return []fileEntry{{path: src, name: filepath.Base(src), size: info.Size(), info: info}}, info.Size(), nil
	}

	var files []fileEntry
	var total int64
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != src && d.Name() == ".meta" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		files = append(files, fileEntry{path: p, name: filepath.ToSlash(rel), size: fi.Size(), info: fi})
		total += fi.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", src, err)
	}
	return files, total, nil
}

// WriteZip archives src (a file or directory) into dest, streaming each file
// in chunkBytes pieces and reporting progress after every chunk. On error the
// partial dest file is removed. It returns the archive size.
func WriteZip(ctx context.Context, src, dest string, chunkBytes int, progress ProgressFunc) (size int64, err error) {
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	files, total, err := collect(src)
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(out)
	buf := make([]byte, chunkBytes)
	var written int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		hdr, err := zip.FileInfoHeader(f.info)
		if err != nil {
			return 0, fmt.Errorf("header for %s: %w", f.name, err)
		}
		hdr.Name = f.name
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, fmt.Errorf("add %s: %w", f.name, err)
		}
		n, err := copyChunked(ctx, w, f.path, buf, func(chunk int64) {
			written += chunk
			if progress != nil {
				progress(written, total)
			}
		})
		if err != nil {
			return 0, fmt.Errorf("write %s: %w", f.name, err)
		}
		if n != f.size {
			// File changed size under us; totals are advisory only
			total += n - f.size
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		return 0, fmt.Errorf("sync archive: %w", err)
	}
	st, err := out.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return st.Size(), nil
}

func copyChunked(ctx context.Context, w io.Writer, path string, buf []byte, onChunk func(int64)) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	var n int64
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		r, readErr := io.ReadFull(in, buf)
		if r > 0 {
			if _, err := w.Write(buf[:r]); err != nil {
				return n, err
			}
			n += int64(r)
			onChunk(int64(r))
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				return n, nil
			}
			return n, readErr
		}
	}
}

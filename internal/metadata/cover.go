// file: internal/metadata/cover.go
// version: 2.0.0
// guid: 0d4b7e29-c6a1-4f85-93e2-b1f8a5c07d64

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MaxImageBytes caps a single downloaded image.
const MaxImageBytes = 10 * 1024 * 1024

// ErrImageTooLarge means the image exceeded MaxImageBytes.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// ImageFetcher downloads posters and backdrops with the same timeout as the
// catalog search.
type ImageFetcher struct {
	httpClient *http.Client
}

// NewImageFetcher creates a fetcher whose requests are bounded by timeout.
func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	return &ImageFetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Download saves the image at imageURL to destPath. Only image/* responses
// are accepted. The file appears atomically; a failed download leaves nothing
// behind.
func (f *ImageFetcher) Download(ctx context.Context, imageURL, destPath string) error {
	if imageURL == "" {
		return fmt.Errorf("empty image URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("build image request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("unexpected content type: %s", contentType)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	tmp := destPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}

	// Read one byte past the cap to detect oversized bodies
	n, err := io.Copy(out, io.LimitReader(resp.Body, MaxImageBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write image file: %w", err)
	case n > MaxImageBytes:
		_ = os.Remove(tmp)
		return ErrImageTooLarge
	case closeErr != nil:
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close image file: %w", closeErr)
	}

	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to store image file: %w", err)
	}
	return nil
}

// Package download fetches one media file to local storage. Transfers stream
// in fixed-size chunks through a .partial file that is renamed into place on
// success, so a crashed or failed transfer never leaves a half-written file
// at the destination path.
package download

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dialtone/dial-tone/internal/safeurl"
)

// chunkSize is the fixed copy buffer for streaming the body to disk.
const chunkSize = 32 << 10

// Fetch GETs url to destPath, returning the number of bytes written. Requires
// status 200. Unknown or absent content-length is fine: the body is streamed
// until the connection closes.
func Fetch(client *http.Client, url, destPath, userAgent string) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download: %s: HTTP %d", safeurl.Redact(url), resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	partial := destPath + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	n, copyErr := io.CopyBuffer(f, resp.Body, make([]byte, chunkSize))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(partial)
		if copyErr != nil {
			return 0, fmt.Errorf("download: %s: %w", safeurl.Redact(url), copyErr)
		}
		return 0, fmt.Errorf("download: close: %w", closeErr)
	}
	if err := os.Rename(partial, destPath); err != nil {
		os.Remove(partial)
		return 0, fmt.Errorf("download: rename: %w", err)
	}
	return n, nil
}

// Package fetch retrieves the remote key registry document. One-shot: no
// retries, no conditional requests — a failed fetch must leave whatever the
// caller already has untouched, so the adapter only ever returns entries or
// an error, never partial results.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"

	"github.com/dialtone/dial-tone/internal/registry"
	"github.com/dialtone/dial-tone/internal/safeurl"
)

// DefaultMaxResponseBytes caps the registry payload size. Oversized responses
// are rejected before parsing.
const DefaultMaxResponseBytes = 64 << 10

// DefaultUserAgent identifies this client to the registry service.
const DefaultUserAgent = "DialTone/1.0"

// ErrTooLarge is returned when the (decoded) registry payload exceeds the
// configured maximum size.
var ErrTooLarge = errors.New("registry response too large")

// Client fetches and decodes registry documents. Zero values get defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	MaxBytes  int64
}

// Fetch GETs url and parses it as a registry document. Accepts brotli-encoded
// responses; the size cap applies to the decoded payload.
func (c *Client) Fetch(ctx context.Context, url string) ([]registry.Entry, error) {
	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResponseBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry fetch: %w", err)
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry fetch: %s: HTTP %d", safeurl.Redact(url), resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "br" {
		body = brotli.NewReader(resp.Body)
	}

	// Read one byte past the cap to distinguish "exactly max" from "over".
	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("registry fetch: read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("registry fetch: %s: %w (> %d bytes)", safeurl.Redact(url), ErrTooLarge, maxBytes)
	}

	entries, err := registry.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("registry fetch: %w", err)
	}
	return entries, nil
}

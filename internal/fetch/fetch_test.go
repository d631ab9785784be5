package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	"github.com/dialtone/dial-tone/internal/fetch"
	"github.com/dialtone/dial-tone/internal/registry"
)

const sampleDoc = `{
  "1234": {"description": "Voicemail", "kind": "audio", "locator": "https://x/voicemail.mp3"},
  "0":    {"description": "Operator",  "kind": "service", "locator": ""}
}`

func TestFetch_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != fetch.DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", ua, fetch.DefaultUserAgent)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client()}
	entries, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	var media registry.Entry
	for _, e := range entries {
		if e.Key == "1234" {
			media = e
		}
	}
	if media.Kind != registry.KindMedia || media.Locator != "https://x/voicemail.mp3" {
		t.Errorf("entry 1234 = %+v", media)
	}
}

func TestFetch_brotliBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			t.Error("client did not offer brotli")
		}
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(sampleDoc))
		bw.Close()
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client()}
	entries, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestFetch_statusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client()}
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error on HTTP 503")
	}
}

func TestFetch_tooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client(), MaxBytes: 1024}
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, fetch.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestFetch_sizeCapAppliesToDecodedPayload(t *testing.T) {
	// A small compressed body that inflates past the cap must still be rejected.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(strings.Repeat("a", 8192)))
		bw.Close()
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client(), MaxBytes: 1024}
	_, err := c.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, fetch.ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestFetch_unknownKindRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"1": {"description": "x", "kind": "hologram", "locator": "y"}}`))
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client()}
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected parse error for unknown kind")
	}
}

func TestFetch_malformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{broken"))
	}))
	defer srv.Close()

	c := &fetch.Client{HTTP: srv.Client()}
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected parse error")
	}
}

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestStore_saveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(dir, 0)
	in := []Entry{
		entry("1234", "Voicemail", KindMedia, "https://x/voicemail.mp3"),
		entry("0", "Operator", KindService, ""),
		entry("42", "Docs", KindLink, "https://example.com/docs"),
		entry("7", "Torch", KindShortcut, "torch"),
	}
	if err := s.Replace(in, 5000); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	s2 := NewStore(dir, 0)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s2.Len() != len(in) {
		t.Fatalf("Len = %d, want %d", s2.Len(), len(in))
	}
	if s2.LastSync() != 5000 {
		t.Errorf("LastSync = %d, want 5000", s2.LastSync())
	}

	// Element-for-element equal, ignoring order (the document is keyed by key).
	got := s2.List()
	sort.Slice(got, func(i, j int) bool { return got[i].Key < got[j].Key })
	want := append([]Entry(nil), in...)
	sort.Slice(want, func(i, j int) bool { return want[i].Key < want[j].Key })
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStore_loadMissingIsNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	if err := s.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on cold cache = %v, want ErrNotFound", err)
	}
}

func TestStore_loadMalformedIsParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, documentFile), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir, 0)
	err := s.Load()
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on malformed document = %v, want parse error", err)
	}
}

func TestStore_loadUnknownKindIsParseError(t *testing.T) {
	dir := t.TempDir()
	doc := `{"1": {"description": "x", "kind": "phone", "locator": "y"}}`
	if err := os.WriteFile(filepath.Join(dir, documentFile), []byte(doc), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir, 0)
	if err := s.Load(); err == nil {
		t.Fatal("expected parse error for unknown kind")
	}
	if s.Len() != 0 {
		t.Errorf("failed load must not install entries, Len = %d", s.Len())
	}
}

func TestStore_loadFailurePreservesState(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	if err := s.Replace([]Entry{entry("1", "good", KindMedia, "https://x/a.mp3")}, 100); err != nil {
		t.Fatal(err)
	}
	// Corrupt the document on disk, then reload: in-memory state survives.
	if err := os.WriteFile(filepath.Join(dir, documentFile), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.Lookup("1"); !ok {
		t.Error("failed reload clobbered good in-memory registry")
	}
}

func TestStore_missingStampLoadsAsZero(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	if err := s.Replace([]Entry{entry("1", "d", KindMedia, "u")}, 9999); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, stampFile)); err != nil {
		t.Fatal(err)
	}
	s2 := NewStore(dir, 0)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s2.LastSync() != 0 {
		t.Errorf("LastSync = %d, want 0 when stamp missing", s2.LastSync())
	}
}

func TestStore_clearIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	if err := s.Replace([]Entry{entry("1", "d", KindMedia, "u")}, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Len() != 0 || s.LastSync() != 0 {
		t.Errorf("after Clear: Len=%d LastSync=%d", s.Len(), s.LastSync())
	}
	// Files already absent: still success.
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, documentFile)); !os.IsNotExist(err) {
		t.Error("document file still present after Clear")
	}
}

func TestStore_saveAtomicNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 0)
	if err := s.Replace([]Entry{entry("1", "d", KindMedia, "u")}, 100); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != documentFile && e.Name() != stampFile {
			t.Errorf("unexpected file left in dir: %s", e.Name())
		}
	}
}

func TestStore_staleDelegates(t *testing.T) {
	s := NewStore(t.TempDir(), 0)
	if !s.Stale(0, 0) {
		t.Error("empty store must be stale")
	}
	if err := s.Replace([]Entry{entry("1", "d", KindMedia, "u")}, 1000); err != nil {
		t.Fatal(err)
	}
	if s.Stale(2000, DefaultMaxAge) {
		t.Error("freshly saved store must not be stale")
	}
}

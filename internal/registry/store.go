package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when no registry document has been
// persisted yet. Callers treat it as a cold cache, not a failure.
var ErrNotFound = errors.New("no cached registry")

const (
	documentFile = "registry.json"
	stampFile    = "registry.stamp"
)

// Store owns the in-memory registry and its two persisted artifacts: the JSON
// document and a text-encoded sync tick. All methods run on the caller's
// goroutine; the single-threaded driver model means no locking is needed.
type Store struct {
	dir      string
	reg      *Registry
	lastSync Tick
}

// NewStore returns a store rooted at dir. maxEntries <= 0 uses the default.
func NewStore(dir string, maxEntries int) *Store {
	return &Store{
		dir: dir,
		reg: New(maxEntries),
	}
}

func (s *Store) documentPath() string { return filepath.Join(s.dir, documentFile) }
func (s *Store) stampPath() string    { return filepath.Join(s.dir, stampFile) }

// Load reads the persisted registry document and sync tick into memory.
// A missing document is ErrNotFound. On any failure the in-memory registry is
// left untouched.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.documentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("registry load: %w", err)
	}
	entries, err := ParseDocument(data)
	if err != nil {
		return fmt.Errorf("registry load: %w", err)
	}
	s.reg.Replace(entries)
	s.lastSync = s.readStamp()
	log.Printf("registry: loaded %d entries from %s", s.reg.Len(), s.documentPath())
	return nil
}

// Replace atomically swaps the in-memory registry and persists it, recording
// now as the sync tick. The document write is atomic (temp file + rename);
// the stamp write is best-effort and independent — its failure is logged, not
// returned, so a good document write is never reported as a failed save.
func (s *Store) Replace(entries []Entry, now Tick) error {
	s.reg.Replace(entries)
	if err := s.Save(now); err != nil {
		return err
	}
	return nil
}

// Save persists the current in-memory registry and records now as the sync tick.
func (s *Store) Save(now Tick) error {
	data, err := MarshalDocument(s.reg.List())
	if err != nil {
		return fmt.Errorf("registry save: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("registry save: %w", err)
	}
	if err := writeAtomic(s.documentPath(), data); err != nil {
		return fmt.Errorf("registry save: %w", err)
	}
	s.lastSync = now
	if err := os.WriteFile(s.stampPath(), []byte(strconv.FormatUint(uint64(now), 10)), 0600); err != nil {
		log.Printf("registry: warning: could not write sync stamp: %v", err)
	}
	return nil
}

// Clear removes both persisted artifacts and drops the in-memory registry.
// Files already absent count as removed.
func (s *Store) Clear() error {
	var firstErr error
	for _, p := range []string{s.documentPath(), s.stampPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("registry clear: %w", err)
			}
		}
	}
	s.reg.Clear()
	s.lastSync = 0
	return firstErr
}

// Lookup returns the entry for key (case-sensitive exact match).
func (s *Store) Lookup(key string) (Entry, bool) { return s.reg.Lookup(key) }

// List returns all entries in insertion order.
func (s *Store) List() []Entry { return s.reg.List() }

// Len returns the number of loaded entries.
func (s *Store) Len() int { return s.reg.Len() }

// LastSync returns the tick recorded at the last successful save.
func (s *Store) LastSync() Tick { return s.lastSync }

// Stale reports whether the cached registry should be refreshed.
func (s *Store) Stale(now Tick, maxAge time.Duration) bool {
	return IsStale(s.reg.Len(), s.lastSync, now, maxAge)
}

// readStamp returns the persisted sync tick, or 0 when the stamp file is
// missing or garbled (the cache is then simply treated as older).
func (s *Store) readStamp() Tick {
	data, err := os.ReadFile(s.stampPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("registry: warning: could not read sync stamp: %v", err)
		}
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		log.Printf("registry: warning: garbled sync stamp: %v", err)
		return 0
	}
	return Tick(n)
}

// writeAtomic writes data to path via a temp file + rename so readers never
// see a partially-written document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".registry-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("write: %w", writeErr)
		}
		return fmt.Errorf("close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

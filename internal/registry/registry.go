package registry

import "log"

// DefaultMaxEntries bounds the registry size. Lookups are linear; the bound
// keeps that fine.
const DefaultMaxEntries = 50

// Registry is an ordered, capacity-bounded collection of entries with unique
// keys. Listing preserves insertion order; lookup is by key. Replace swaps the
// whole collection atomically so lookups never observe a mix of old and new
// entries.
type Registry struct {
	entries []Entry
	max     int
}

// New returns an empty registry. maxEntries <= 0 uses DefaultMaxEntries.
func New(maxEntries int) *Registry {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Registry{max: maxEntries}
}

// Replace discards all current entries and installs the given ones, keeping
// insertion order and dropping duplicates (first occurrence wins). Entries
// beyond capacity are dropped with a warning, matching load-slot semantics:
// the operation never partially applies.
func (r *Registry) Replace(entries []Entry) {
	next := make([]Entry, 0, min(len(entries), r.max))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			log.Printf("registry: duplicate key %q dropped", e.Key)
			continue
		}
		if len(next) >= r.max {
			log.Printf("registry: capacity %d reached, dropping %d excess entries", r.max, len(entries)-len(seen))
			break
		}
		seen[e.Key] = struct{}{}
		next = append(next, e)
	}
	r.entries = next
}

// Lookup returns the entry for key (case-sensitive exact match).
func (r *Registry) Lookup(key string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// List returns a copy of the entries in insertion order.
func (r *Registry) List() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Clear drops all entries.
func (r *Registry) Clear() {
	r.entries = nil
}

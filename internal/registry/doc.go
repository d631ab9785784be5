package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

// docEntry is the per-key value in the registry document. The same schema is
// used for the persisted cache file and the remote registry payload.
type docEntry struct {
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Locator     string `json:"locator"`
}

// MarshalDocument renders entries as the registry document: a JSON object
// keyed by key string.
func MarshalDocument(entries []Entry) ([]byte, error) {
	doc := make(map[string]docEntry, len(entries))
	for _, e := range entries {
		doc[e.Key] = docEntry{
			Description: e.Description,
			Kind:        e.Kind.String(),
			Locator:     e.Locator,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ParseDocument parses a registry document. Unknown kind strings are rejected
// here rather than carried into the registry: a document with a bad kind is a
// parse failure, the caller keeps its previous state. Entries come back sorted
// by key so parsing is deterministic (JSON objects carry no order).
func ParseDocument(data []byte) ([]Entry, error) {
	var doc map[string]docEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry document: %w", err)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(doc))
	for _, k := range keys {
		d := doc[k]
		kind, err := ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("registry document: key %q: %w", k, err)
		}
		entries = append(entries, Entry{
			Key:         k,
			Description: d.Description,
			Kind:        kind,
			Locator:     d.Locator,
		})
	}
	return entries, nil
}

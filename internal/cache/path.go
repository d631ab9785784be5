package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Filename derives a filesystem-safe local filename for a locator. Total and
// deterministic: same locator always maps to the same name. The segment after
// the last slash is used when it carries an extension, sanitized down to
// alphanumerics, '.', '-', '_' (spaces become '_'). Locators without a usable
// segment get a content-independent hashed name.
func Filename(locator string) string {
	if s, ok := sanitizedName(locator); ok {
		return s
	}
	return hashedName(locator)
}

// DestPath returns the download destination for locator under dir. Hash-named
// destinations probe for an unoccupied slot (suffix _1.._999) so two distinct
// locators that collide on the 32-bit hash don't overwrite each other. After
// 999 occupied slots the base name is reused (overwrite, logged, not fatal).
func DestPath(dir, locator string) string {
	if s, ok := sanitizedName(locator); ok {
		return filepath.Join(dir, s)
	}
	base := hashedName(locator)
	path := filepath.Join(dir, base)
	if !exists(path) {
		return path
	}
	stem := strings.TrimSuffix(base, ".mp3")
	for n := 1; n < 1000; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d.mp3", stem, n))
		if !exists(candidate) {
			return candidate
		}
	}
	log.Printf("cache: too many hash collisions for %s, overwriting %s", locator, base)
	return path
}

// CachedPath returns the canonical cached path for locator and whether a file
// is present there. Existence checks always use the base derived name, never
// a collision-probed slot, so a completed download is found on re-resolution.
func CachedPath(dir, locator string) (string, bool) {
	path := filepath.Join(dir, Filename(locator))
	return path, exists(path)
}

// sanitizedName extracts and cleans the last path segment. Returns ok=false
// when the segment has no extension marker or sanitizes to nothing.
func sanitizedName(locator string) (string, bool) {
	seg := locator
	if i := strings.LastIndexByte(locator, '/'); i >= 0 {
		seg = locator[i+1:]
	}
	if seg == "" || !strings.ContainsRune(seg, '.') {
		return "", false
	}
	var b strings.Builder
	for _, c := range seg {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, ".") == "" {
		return "", false
	}
	return out, true
}

// hashedName builds "audio_<hex8>.mp3" from a djb2 rolling hash (seed 5381,
// multiplier 33) of the full locator.
func hashedName(locator string) string {
	var hash uint32 = 5381
	for i := 0; i < len(locator); i++ {
		hash = hash<<5 + hash + uint32(locator[i])
	}
	return fmt.Sprintf("audio_%08x.mp3", hash)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

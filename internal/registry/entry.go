package registry

import "fmt"

// Kind classifies what a key entry resolves to. Closed set; unknown wire
// values are rejected at parse time, never dispatched at resolution time.
type Kind int

const (
	KindMedia    Kind = iota // playable media reference (remote URL or local path)
	KindService              // external service hook
	KindShortcut             // device-side shortcut
	KindLink                 // plain URL to hand off
)

// Wire strings as they appear in the registry document.
const (
	kindMediaWire    = "audio"
	kindServiceWire  = "service"
	kindShortcutWire = "shortcut"
	kindLinkWire     = "url"
)

// ParseKind maps a registry document kind string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case kindMediaWire:
		return KindMedia, nil
	case kindServiceWire:
		return KindService, nil
	case kindShortcutWire:
		return KindShortcut, nil
	case kindLinkWire:
		return KindLink, nil
	}
	return 0, fmt.Errorf("unknown entry kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case KindMedia:
		return kindMediaWire
	case KindService:
		return kindServiceWire
	case KindShortcut:
		return kindShortcutWire
	case KindLink:
		return kindLinkWire
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entry is one key → action mapping. Immutable after creation; the whole
// registry is swapped on refresh rather than mutating entries in place.
type Entry struct {
	Key         string
	Description string
	Kind        Kind
	Locator     string // remote URL or local path, meaning depends on Kind
}

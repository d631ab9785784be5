package registry

import "time"

// DefaultMaxAge is how long a cached registry stays fresh.
const DefaultMaxAge = 7 * 24 * time.Hour

// maxTick is the largest value of the 32-bit millisecond tick counter.
const maxTick = 0xFFFFFFFF

// Tick is a wrapping 32-bit millisecond counter. Persisted sync timestamps
// use this representation, so age math must survive counter rollover.
type Tick = uint32

// NowTick returns the current tick. Wraps roughly every 49.7 days.
func NowTick() Tick {
	return Tick(time.Now().UnixMilli())
}

// TickAge returns the elapsed milliseconds from last to now, correcting for a
// single counter wraparound: when now < last the counter rolled over and the
// true age is the distance to the top plus the distance from zero.
func TickAge(last, now Tick) uint64 {
	if now >= last {
		return uint64(now - last)
	}
	return uint64(maxTick-last) + uint64(now) + 1
}

// IsStale reports whether the cached registry must be refreshed: always when
// no entries exist, otherwise when the corrected age exceeds maxAge.
// maxAge <= 0 uses DefaultMaxAge.
func IsStale(entryCount int, lastSync, now Tick, maxAge time.Duration) bool {
	if entryCount == 0 {
		return true
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return TickAge(lastSync, now) > uint64(maxAge.Milliseconds())
}

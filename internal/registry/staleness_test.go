package registry

import (
	"testing"
	"time"
)

func TestIsStale_emptyAlwaysStale(t *testing.T) {
	if !IsStale(0, 0, 0, time.Hour) {
		t.Error("empty registry must be stale regardless of age")
	}
	if !IsStale(0, 100, 101, time.Hour) {
		t.Error("empty registry must be stale even when recently synced")
	}
}

func TestIsStale_basic(t *testing.T) {
	maxAge := time.Hour
	last := Tick(1_000_000)
	fresh := last + uint32(30*time.Minute.Milliseconds())
	stale := last + uint32(2*time.Hour.Milliseconds())
	if IsStale(5, last, fresh, maxAge) {
		t.Error("30m old with 1h max should be fresh")
	}
	if !IsStale(5, last, stale, maxAge) {
		t.Error("2h old with 1h max should be stale")
	}
}

func TestIsStale_wraparoundSmallElapsed(t *testing.T) {
	// lastSync near the counter maximum, now just past zero: elapsed is a few
	// seconds of real time, so the cache is still fresh.
	last := Tick(0xFFFFFFFF - 1000) // 1s before rollover
	now := Tick(2000)               // 2s after rollover
	if age := TickAge(last, now); age != 3001 {
		t.Fatalf("TickAge = %d, want 3001", age)
	}
	if IsStale(5, last, now, time.Hour) {
		t.Error("3s elapsed across rollover must not be stale")
	}
}

func TestIsStale_wraparoundLargeElapsed(t *testing.T) {
	last := Tick(0xFFFFFFFF - 1000)
	now := Tick(uint32(2 * time.Hour.Milliseconds()))
	if !IsStale(5, last, now, time.Hour) {
		t.Error("2h elapsed across rollover must be stale")
	}
}

func TestTickAge_monotonic(t *testing.T) {
	// Increasing elapsed time never decreases the computed age.
	last := Tick(0xFFFFFF00)
	prev := uint64(0)
	for i := 0; i < 2048; i++ {
		now := last + uint32(i*1000)
		age := TickAge(last, now)
		if age < prev {
			t.Fatalf("age regressed at step %d: %d < %d", i, age, prev)
		}
		prev = age
	}
}

func TestIsStale_defaultMaxAge(t *testing.T) {
	last := Tick(0)
	sixDays := Tick(6 * 24 * time.Hour.Milliseconds())
	eightDays := Tick(8 * 24 * time.Hour.Milliseconds())
	if IsStale(1, last, sixDays, 0) {
		t.Error("6 days should be fresh under the 7-day default")
	}
	if !IsStale(1, last, eightDays, 0) {
		t.Error("8 days should be stale under the 7-day default")
	}
}

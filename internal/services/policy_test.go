package services

import (
	"testing"
	"time"
)

func TestClock_NilFallsBackToUTCWallClock(t *testing.T) {
	var c Clock
	before := time.Now().Add(-time.Second)
	got := c.now()
	if got.Location() != time.UTC {
		t.Fatalf("location = %s, want UTC", got.Location())
	}
	if got.Before(before) {
		t.Fatalf("now = %s, earlier than %s", got, before)
	}
}

func TestClock_InjectedIsNormalizedToUTC(t *testing.T) {
	loc := time.FixedZone("PST", -8*60*60)
	fixed := time.Date(2026, 3, 2, 7, 0, 0, 0, loc)
	c := Clock(func() time.Time { return fixed })
	if got := c.now(); !got.Equal(fixed) || got.Location() != time.UTC {
		t.Fatalf("now = %s", got)
	}
}

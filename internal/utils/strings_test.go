package utils

import (
	"strings"
	"testing"
	"time"
)

func TestBookingNumberFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	got := BookingNumber("dtl", now)
	parts := strings.Split(got, "-")
	if len(parts) != 3 {
		t.Fatalf("unexpected booking number %q", got)
	}
	if parts[0] != "DTL" || parts[1] != "1700000000123" {
		t.Fatalf("unexpected prefix/millis in %q", got)
	}
	if len(parts[2]) != 4 {
		t.Fatalf("suffix should be 4 chars, got %q", parts[2])
	}
	for _, r := range parts[2] {
		if !strings.ContainsRune(base36Alphabet, r) {
			t.Fatalf("suffix has non base36 rune %q", r)
		}
	}
}

func TestNormalizeSpace(t *testing.T) {
	if got := NormalizeSpace("  12  Main \t St "); got != "12 Main St" {
		t.Fatalf("got %q", got)
	}
}

package utils

import (
	"math"
	"testing"
)

func TestHaversineMiles(t *testing.T) {
	if d := HaversineMiles(40.0, -74.0, 40.0, -74.0); d != 0 {
		t.Fatalf("same point distance = %f", d)
	}
	// one hundredth of a degree of latitude is ~0.69 miles
	d := HaversineMiles(40.00, -74.0, 40.01, -74.0)
	if math.Abs(d-0.691) > 0.01 {
		t.Fatalf("distance = %f, want ~0.691", d)
	}
}

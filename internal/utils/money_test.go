package utils

import "testing"

func TestParseCents(t *testing.T) {
	cases := map[string]int64{
		"144.60": 14460,
		"100":    10000,
		"9.6":    960,
		"0.05":   5,
		".5":     50,
		"-3.5":   -350,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		if err != nil {
			t.Fatalf("ParseCents(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseCents(%q) = %d, want %d", in, got, want)
		}
	}
	for _, bad := range []string{"", "abc", "1.234", "."} {
		if _, err := ParseCents(bad); err == nil {
			t.Fatalf("ParseCents(%q) expected error", bad)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(14460); got != "144.60" {
		t.Fatalf("got %s", got)
	}
	if got := FormatCents(5); got != "0.05" {
		t.Fatalf("got %s", got)
	}
	if got := FormatCents(-1229); got != "-12.29" {
		t.Fatalf("got %s", got)
	}
	if got := FormatMoney(123450, "usd"); got != "USD 1,234.50" {
		t.Fatalf("got %s", got)
	}
}

func TestBasisPointsOf_RoundsHalfUp(t *testing.T) {
	// 8.5% of $144.60 = 1229.1 cents
	if got := BasisPointsOf(14460, 850); got != 1229 {
		t.Fatalf("fee = %d, want 1229", got)
	}
	// 8.5% of $1.00 = 8.5 cents
	if got := BasisPointsOf(100, 850); got != 9 {
		t.Fatalf("fee = %d, want 9", got)
	}
	if got := BasisPointsOf(0, 850); got != 0 {
		t.Fatalf("fee = %d, want 0", got)
	}
}

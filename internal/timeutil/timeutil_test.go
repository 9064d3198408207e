package timeutil

import (
	"errors"
	"testing"
)

func TestToMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"08:30", 510, true},
		{"23:59", 1439, true},
		{"9:05", 545, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"12", 0, false},
		{"12:00:00", 0, false},
		{"ab:cd", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ToMinutes(c.in)
		if c.ok {
			if err != nil {
				t.Fatalf("ToMinutes(%q): %v", c.in, err)
			}
			if got != c.want {
				t.Fatalf("ToMinutes(%q) = %d, want %d", c.in, got, c.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ToMinutes(%q): expected error", c.in)
		}
		if !errors.Is(err, ErrInvalidTimeFormat) {
			t.Fatalf("ToMinutes(%q): error %v not ErrInvalidTimeFormat", c.in, err)
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	if got := FormatMinutes(510); got != "08:30" {
		t.Fatalf("FormatMinutes(510) = %q", got)
	}
	if got := FormatMinutes(0); got != "00:00" {
		t.Fatalf("FormatMinutes(0) = %q", got)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	// Touching endpoints do not overlap.
	if Overlaps(540, 600, 600, 660) {
		t.Fatal("adjacent intervals must not overlap")
	}
	if Overlaps(600, 660, 540, 600) {
		t.Fatal("adjacent intervals must not overlap (swapped)")
	}
	// Any pair with max(starts) < min(ends) overlaps.
	if !Overlaps(540, 600, 570, 630) {
		t.Fatal("expected overlap")
	}
	if !Overlaps(570, 630, 540, 600) {
		t.Fatal("overlap must be symmetric")
	}
	if !Overlaps(540, 660, 570, 600) {
		t.Fatal("containment is overlap")
	}
	if Overlaps(540, 600, 700, 760) {
		t.Fatal("disjoint intervals must not overlap")
	}
}

func TestSpan(t *testing.T) {
	s, e, err := Span("09:00", "10:30")
	if err != nil || s != 540 || e != 630 {
		t.Fatalf("Span = %d,%d,%v", s, e, err)
	}
	if _, _, err := Span("10:00", "10:00"); err == nil {
		t.Fatal("zero-length span must be rejected")
	}
	if _, _, err := Span("11:00", "10:00"); err == nil {
		t.Fatal("inverted span must be rejected")
	}
}

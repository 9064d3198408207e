package schedule

import "testing"

func TestPlaceSequentialInserts(t *testing.T) {
	// Inserting N blocks one at a time, each after the previous, must
	// yield indexes 0..N-1 with no gaps or duplicates.
	var placed []Placed
	for i := 0; i < 6; i++ {
		start := 480 + i*60
		p := Place(placed, start, start+60)
		if p.Index != i {
			t.Fatalf("insert %d: index %d", i, p.Index)
		}
		if len(p.Shifted) != 0 {
			t.Fatalf("insert %d: unexpected shifts %v", i, p.Shifted)
		}
		placed = append(placed, Placed{ID: string(rune('a' + i)), Index: p.Index, Start: start, End: start + 60})
	}
	seen := map[int]bool{}
	for _, b := range placed {
		if seen[b.Index] {
			t.Fatalf("duplicate index %d", b.Index)
		}
		seen[b.Index] = true
	}
	for i := 0; i < len(placed); i++ {
		if !seen[i] {
			t.Fatalf("missing index %d", i)
		}
	}
}

func TestPlaceBeforeEverything(t *testing.T) {
	existing := []Placed{
		{ID: "a", Index: 0, Start: 540, End: 600},
		{ID: "b", Index: 1, Start: 600, End: 660},
	}
	p := Place(existing, 480, 530)
	if p.Index != 0 {
		t.Fatalf("index %d, want 0", p.Index)
	}
	if len(p.Shifted) != 2 {
		t.Fatalf("shifted %v, want both", p.Shifted)
	}
}

func TestPlaceNearestPrecedingNeighbor(t *testing.T) {
	// Blocks whose start times are not monotonic with index: the new
	// block attaches after the closest non-overlapping predecessor, not
	// into a start-time-sorted position.
	existing := []Placed{
		{ID: "late", Index: 0, Start: 900, End: 960},
		{ID: "early", Index: 1, Start: 480, End: 540},
	}
	p := Place(existing, 560, 620)
	// "early" ends at 540 (gap 20), "late" does not qualify.
	if p.Index != 2 {
		t.Fatalf("index %d, want 2 (after nearest predecessor)", p.Index)
	}
	if len(p.Shifted) != 0 {
		t.Fatalf("unexpected shifts %v", p.Shifted)
	}
}

func TestPlaceTiePrefersHighestIndex(t *testing.T) {
	// Two candidates end at the same minute; the higher index wins.
	existing := []Placed{
		{ID: "a", Index: 0, Start: 480, End: 540},
		{ID: "b", Index: 1, Start: 500, End: 540},
		{ID: "c", Index: 2, Start: 600, End: 660},
	}
	p := Place(existing, 540, 590)
	if p.Index != 2 {
		t.Fatalf("index %d, want 2 (after candidate with highest index)", p.Index)
	}
	if len(p.Shifted) != 1 || p.Shifted[0] != "c" {
		t.Fatalf("shifted %v, want [c]", p.Shifted)
	}
}

func TestPlaceMidInsertShifts(t *testing.T) {
	existing := []Placed{
		{ID: "a", Index: 0, Start: 480, End: 540},
		{ID: "b", Index: 1, Start: 600, End: 660},
		{ID: "c", Index: 2, Start: 720, End: 780},
	}
	p := Place(existing, 540, 600)
	if p.Index != 1 {
		t.Fatalf("index %d, want 1", p.Index)
	}
	if len(p.Shifted) != 2 {
		t.Fatalf("shifted %v, want b and c", p.Shifted)
	}
}

func TestPlaceOverlapStillPlaces(t *testing.T) {
	// Overlap is not a rejection here; the placement is computed and the
	// overlapping sibling reported for conflict review.
	existing := []Placed{
		{ID: "a", Index: 0, Start: 480, End: 540},
		{ID: "b", Index: 1, Start: 540, End: 620},
	}
	p := Place(existing, 545, 585)
	if p.Index != 1 {
		t.Fatalf("index %d, want 1", p.Index)
	}
	if len(p.Overlapping) != 1 || p.Overlapping[0] != "b" {
		t.Fatalf("overlapping %v, want [b]", p.Overlapping)
	}
}

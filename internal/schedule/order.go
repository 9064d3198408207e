// Package schedule holds the pure placement and validation logic for a
// day's blocks. Nothing here touches storage; callers pass minute-offset
// views of their blocks and apply the results themselves.
package schedule

import "dayline/internal/timeutil"

// Placed is a minute-offset view of an already persisted block.
type Placed struct {
	ID    string
	Index int
	Start int
	End   int
}

// Placement is the computed position for a new block among its siblings.
type Placement struct {
	// Index the new block should take.
	Index int
	// Shifted lists existing block ids whose index moves up by one.
	Shifted []string
	// Overlapping lists existing block ids whose time range intersects
	// the new block's. Placement still succeeds; the caller flags the
	// block for conflict review instead of rejecting it.
	Overlapping []string
}

// Place computes where a block spanning [start,end) belongs among the
// existing blocks. The anchor is the nearest preceding neighbor: the
// existing block with the latest end time still at or before the new
// start, ties broken toward the highest index. The new index is one past
// the anchor, or zero when no block ends early enough. This deliberately
// is not a sort by absolute start time; blocks whose times are not
// monotonic with index keep their positions and only the neighbors shift.
func Place(existing []Placed, start, end int) Placement {
	anchorIdx := -1
	bestGap := -1
	for _, b := range existing {
		if b.End > start {
			continue
		}
		gap := start - b.End
		if anchorIdx == -1 || gap < bestGap || (gap == bestGap && b.Index > anchorIdx) {
			anchorIdx = b.Index
			bestGap = gap
		}
	}
	p := Placement{Index: anchorIdx + 1}
	for _, b := range existing {
		if b.Index >= p.Index {
			p.Shifted = append(p.Shifted, b.ID)
		}
		if timeutil.Overlaps(start, end, b.Start, b.End) {
			p.Overlapping = append(p.Overlapping, b.ID)
		}
	}
	return p
}

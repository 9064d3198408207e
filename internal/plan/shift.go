package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dayline/internal/domain"
	"dayline/internal/schedule"
	"dayline/internal/timeutil"
)

const minutesPerDay = 24 * 60

// ShiftPlanner is a deterministic planner for single-block moves. It
// understands one instruction form, "move <block-id> to <HH:MM>", and
// resolves any conflict the move creates by shifting later blocks right
// by the minimum amount needed. The moved block wins every conflict; no
// other block is ever removed or reordered.
type ShiftPlanner struct {
	Rules schedule.Rules
}

func (p ShiftPlanner) Plan(_ context.Context, current []domain.Block, instruction string) ([]domain.Block, Audit, error) {
	fields := strings.Fields(instruction)
	if len(fields) != 4 || fields[0] != "move" || fields[2] != "to" {
		return nil, Audit{}, fmt.Errorf("%q: %w", instruction, ErrUnknownInstruction)
	}
	return p.Move(current, fields[1], fields[3])
}

// Move rewrites the schedule with blockID starting at newStart. The
// audit lists the moved block and every block the cascade shifted.
func (p ShiftPlanner) Move(current []domain.Block, blockID, newStart string) ([]domain.Block, Audit, error) {
	startMin, err := timeutil.ToMinutes(newStart)
	if err != nil {
		return nil, Audit{}, err
	}

	type span struct {
		pos        int // position in the input slice
		start, end int
		moved      bool
	}
	spans := make([]span, 0, len(current))
	target := -1
	for i, b := range current {
		s, e, err := timeutil.Span(b.StartTime, b.EndTime)
		if err != nil {
			return nil, Audit{}, fmt.Errorf("block %s: %w", b.ID, err)
		}
		if b.ID == blockID {
			target = i
			e = startMin + (e - s)
			s = startMin
		}
		spans = append(spans, span{pos: i, start: s, end: e, moved: b.ID == blockID})
	}
	if target == -1 {
		return nil, Audit{}, fmt.Errorf("block %s: %w", blockID, ErrHardConflict)
	}

	// Sweep in chronological order, the moved block first on a start
	// tie, pushing each block that now collides with the running
	// frontier to the minimum non-overlapping start.
	order := make([]*span, len(spans))
	for i := range spans {
		order[i] = &spans[i]
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].start != order[j].start {
			return order[i].start < order[j].start
		}
		return order[i].moved && !order[j].moved
	})
	audit := Audit{Modified: []string{blockID}}
	frontier := -1
	for _, s := range order {
		if s.start < frontier {
			delta := frontier - s.start
			s.start += delta
			s.end += delta
			if !s.moved {
				audit.Modified = append(audit.Modified, current[s.pos].ID)
			}
		}
		if s.end > frontier {
			frontier = s.end
		}
	}
	sort.Strings(audit.Modified)

	proposed := make([]domain.Block, len(current))
	candidates := make([]schedule.Candidate, 0, len(current))
	for i, s := range spans {
		if s.end > minutesPerDay {
			audit.Unsatisfied = append(audit.Unsatisfied,
				fmt.Sprintf("block %s shifted past midnight", current[s.pos].ID))
			return nil, audit, fmt.Errorf("move %s to %s: %w", blockID, newStart, ErrHardConflict)
		}
		b := current[i]
		b.StartTime = timeutil.FormatMinutes(s.start)
		b.EndTime = timeutil.FormatMinutes(s.end)
		proposed[i] = b
		candidates = append(candidates, schedule.Candidate{
			ID:         b.ID,
			Name:       b.Name,
			Type:       b.Type,
			Start:      s.start,
			End:        s.end,
			Difficulty: b.Difficulty,
		})
	}

	report := schedule.Validate(candidates, p.Rules)
	if !report.Valid {
		audit.Unsatisfied = append(audit.Unsatisfied, report.Conflicts...)
		return nil, audit, fmt.Errorf("move %s to %s: %w", blockID, newStart, ErrHardConflict)
	}
	return proposed, audit, nil
}

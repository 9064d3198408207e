// Package plan holds the regeneration contract for schedule rewrites.
// A planner, whatever produces it, must return both a proposed schedule
// and an audit enumerating every id it touched; this package verifies
// the audit against the real diff and enforces that untargeted blocks
// keep their identity. Accepted proposals still have to pass the hard
// validation checks before a rebuild applies them.
package plan

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dayline/internal/domain"
)

var (
	// ErrHardConflict means the proposal cannot be accepted as-is: a
	// requested change could not be satisfied or the result fails the
	// validation engine's hard checks.
	ErrHardConflict = errors.New("hard conflict")
	// ErrAuditMismatch means the planner's audit omits or invents a
	// change relative to the actual diff.
	ErrAuditMismatch = errors.New("audit does not match proposal")
	// ErrIdentityLost means the proposal removed or replaced a block the
	// instruction did not target.
	ErrIdentityLost = errors.New("untargeted block identity lost")

	ErrUnknownInstruction = errors.New("unknown instruction")
)

// Audit enumerates every change a proposal makes. It is mandatory
// planner output, not best effort: CheckAudit rejects proposals whose
// audit is incomplete.
type Audit struct {
	Modified    []string `json:"modified"`
	Created     []string `json:"created"`
	Removed     []string `json:"removed"`
	Unsatisfied []string `json:"unsatisfied,omitempty"`
}

// Planner produces a rewritten schedule from the current one and a
// change instruction. Implementations may call out to anything, an
// external language model included; the audit contract binds them all.
type Planner interface {
	Plan(ctx context.Context, current []domain.Block, instruction string) ([]domain.Block, Audit, error)
}

// Diff computes the actual change set between the current schedule and
// a proposal. Blocks are matched by id; a proposed block without an id
// is a creation, reported by name. Output slices are sorted.
func Diff(current, proposed []domain.Block) Audit {
	byID := make(map[string]domain.Block, len(current))
	for _, b := range current {
		byID[b.ID] = b
	}
	var a Audit
	seen := make(map[string]bool, len(proposed))
	for _, p := range proposed {
		if p.ID == "" {
			a.Created = append(a.Created, p.Name)
			continue
		}
		seen[p.ID] = true
		cur, ok := byID[p.ID]
		if !ok {
			a.Created = append(a.Created, p.ID)
			continue
		}
		if blockChanged(cur, p) {
			a.Modified = append(a.Modified, p.ID)
		}
	}
	for _, b := range current {
		if !seen[b.ID] {
			a.Removed = append(a.Removed, b.ID)
		}
	}
	sort.Strings(a.Modified)
	sort.Strings(a.Created)
	sort.Strings(a.Removed)
	return a
}

func blockChanged(cur, p domain.Block) bool {
	if cur.Name != p.Name || cur.StartTime != p.StartTime || cur.EndTime != p.EndTime {
		return true
	}
	if cur.Type != p.Type || cur.Status != p.Status || cur.Difficulty != p.Difficulty {
		return true
	}
	return !sameIDSet(taskIDs(cur), taskIDs(p))
}

func taskIDs(b domain.Block) []string {
	if len(b.Tasks) > 0 {
		ids := make([]string, 0, len(b.Tasks))
		for _, t := range b.Tasks {
			ids = append(ids, t.ID)
		}
		return ids
	}
	return b.TaskIDs
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// CheckAudit verifies a planner's audit against the real diff and the
// instruction's target set. Every actual change must appear in the
// audit, and a block the instruction did not target may be shifted but
// never removed. An empty target set waives the targeting check.
func CheckAudit(current, proposed []domain.Block, a Audit, targeted []string) error {
	actual := Diff(current, proposed)
	if err := subset(actual.Modified, a.Modified, "modified"); err != nil {
		return err
	}
	if err := subset(actual.Created, a.Created, "created"); err != nil {
		return err
	}
	if err := subset(actual.Removed, a.Removed, "removed"); err != nil {
		return err
	}
	if len(targeted) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(targeted))
	for _, id := range targeted {
		allowed[id] = true
	}
	for _, id := range actual.Removed {
		if !allowed[id] {
			return fmt.Errorf("block %s: %w", id, ErrIdentityLost)
		}
	}
	return nil
}

func subset(actual, declared []string, kind string) error {
	set := make(map[string]bool, len(declared))
	for _, id := range declared {
		set[id] = true
	}
	for _, id := range actual {
		if !set[id] {
			return fmt.Errorf("%s %q missing from audit: %w", kind, id, ErrAuditMismatch)
		}
	}
	return nil
}

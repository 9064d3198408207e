package schedule

import (
	"fmt"
	"sort"

	"dayline/internal/domain"
	"dayline/internal/timeutil"
)

// Candidate is a validation view of one proposed block.
type Candidate struct {
	ID           string
	Name         string
	Type         string
	Start        int
	End          int
	Difficulty   string
	HighPriority bool // carries a High-priority task, or is itself High
	HasDeadline  bool
}

// Window is a clock window in minutes past midnight.
type Window struct {
	Start int
	End   int
}

// Rules are the capacity and placement limits applied by Validate.
// All of them can be overridden from config.
type Rules struct {
	MaxHardBlocks      int
	OptimalHardBlocks  int
	MaxDeepWorkBlocks  int
	MaxDeepWorkMinutes int
	DeepWorkWindows    []Window
	AdminWindows       []Window
}

// DefaultRules returns the stock limits: at most 3 hard blocks (2 is the
// optimum), at most 2 deep-work blocks totalling 3.5 hours, deep work
// optimal 08:00-11:00 and 15:00-17:00, admin optimal 11:00-12:00,
// 14:00-15:00 and 16:30-18:00.
func DefaultRules() Rules {
	return Rules{
		MaxHardBlocks:      3,
		OptimalHardBlocks:  2,
		MaxDeepWorkBlocks:  2,
		MaxDeepWorkMinutes: 210,
		DeepWorkWindows:    []Window{{480, 660}, {900, 1020}},
		AdminWindows:       []Window{{660, 720}, {840, 900}, {990, 1080}},
	}
}

// Report is the structured result of validating a candidate schedule.
// Valid is false only for overlaps and hard capacity violations;
// advisories never reject.
type Report struct {
	Valid      bool     `json:"valid"`
	Conflicts  []string `json:"conflicts"`
	Advisories []string `json:"advisories"`
	// KeepOrder ranks the candidate ids by who should win a conflict:
	// events first, then routines, deadline-bound blocks, deep work,
	// admin. Resolution is the caller's decision; the engine only
	// surfaces the ranking. Events are never reported as movable.
	KeepOrder []string `json:"keep_order"`
}

// Validate checks a full candidate schedule against overlap and capacity
// rules. It never mutates its input and reports every finding, not just
// the first.
func Validate(blocks []Candidate, rules Rules) Report {
	report := Report{Valid: true}

	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			if timeutil.Overlaps(blocks[i].Start, blocks[i].End, blocks[j].Start, blocks[j].End) {
				report.Conflicts = append(report.Conflicts,
					fmt.Sprintf("%q overlaps with %q", blocks[i].Name, blocks[j].Name))
			}
		}
	}

	hard := 0
	deepWork := 0
	deepWorkMinutes := 0
	for _, b := range blocks {
		if b.Type == domain.TypeDeepWork || b.HighPriority || b.Difficulty == "hard" {
			hard++
		}
		if b.Type == domain.TypeDeepWork {
			deepWork++
			deepWorkMinutes += b.End - b.Start
		}
	}
	if hard > rules.MaxHardBlocks {
		report.Conflicts = append(report.Conflicts,
			fmt.Sprintf("%d hard blocks exceed the daily limit of %d", hard, rules.MaxHardBlocks))
	} else if hard > rules.OptimalHardBlocks {
		report.Advisories = append(report.Advisories,
			fmt.Sprintf("%d hard blocks scheduled; %d is the optimum", hard, rules.OptimalHardBlocks))
	}
	if deepWork > rules.MaxDeepWorkBlocks {
		report.Conflicts = append(report.Conflicts,
			fmt.Sprintf("%d deep-work blocks exceed the limit of %d", deepWork, rules.MaxDeepWorkBlocks))
	}
	if deepWorkMinutes > rules.MaxDeepWorkMinutes {
		report.Conflicts = append(report.Conflicts,
			fmt.Sprintf("deep-work total %dm exceeds the limit of %dm", deepWorkMinutes, rules.MaxDeepWorkMinutes))
	}

	for _, b := range blocks {
		switch b.Type {
		case domain.TypeDeepWork:
			if !inAnyWindow(b, rules.DeepWorkWindows) {
				report.Advisories = append(report.Advisories,
					fmt.Sprintf("%q is outside the optimal deep-work windows", b.Name))
			}
		case domain.TypeAdmin:
			if !inAnyWindow(b, rules.AdminWindows) {
				report.Advisories = append(report.Advisories,
					fmt.Sprintf("%q is outside the optimal admin windows", b.Name))
			}
		}
	}

	report.KeepOrder = keepOrder(blocks)
	report.Valid = len(report.Conflicts) == 0
	return report
}

func inAnyWindow(b Candidate, windows []Window) bool {
	for _, w := range windows {
		if b.Start >= w.Start && b.End <= w.End {
			return true
		}
	}
	return false
}

func conflictRank(b Candidate) int {
	switch {
	case b.Type == domain.TypeEvent || b.Type == domain.TypeMeeting:
		return 0
	case b.Type == domain.TypeRoutine:
		return 1
	case b.HasDeadline:
		return 2
	case b.Type == domain.TypeDeepWork && b.HighPriority:
		return 3
	case b.Type == domain.TypeDeepWork:
		return 4
	case b.Type == domain.TypeAdmin:
		return 5
	default:
		return 6
	}
}

func keepOrder(blocks []Candidate) []string {
	ranked := make([]Candidate, len(blocks))
	copy(ranked, blocks)
	sort.SliceStable(ranked, func(i, j int) bool {
		return conflictRank(ranked[i]) < conflictRank(ranked[j])
	})
	ids := make([]string, 0, len(ranked))
	for _, b := range ranked {
		ids = append(ids, b.ID)
	}
	return ids
}

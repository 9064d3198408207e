package schedule

import (
	"strings"
	"testing"

	"dayline/internal/domain"
)

func mustSpanCandidate(t *testing.T, id, name, typ string, start, end int) Candidate {
	t.Helper()
	return Candidate{ID: id, Name: name, Type: typ, Start: start, End: end}
}

func TestValidateReportsEachOverlapOnce(t *testing.T) {
	blocks := []Candidate{
		mustSpanCandidate(t, "a", "Morning focus", domain.TypeDeepWork, 540, 600),  // 09:00-10:00
		mustSpanCandidate(t, "b", "Standup", domain.TypeMeeting, 570, 630),         // 09:30-10:30
		mustSpanCandidate(t, "c", "Inbox sweep", domain.TypeAdmin, 660, 720),       // 11:00-12:00
	}
	report := Validate(blocks, DefaultRules())
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts %v, want exactly one", report.Conflicts)
	}
	c := report.Conflicts[0]
	if !strings.Contains(c, "Morning focus") || !strings.Contains(c, "Standup") {
		t.Fatalf("conflict %q must name both blocks", c)
	}
}

func TestValidateDeepWorkCapacity(t *testing.T) {
	var blocks []Candidate
	for i := 0; i < 4; i++ {
		start := 480 + i*90
		blocks = append(blocks, mustSpanCandidate(t, string(rune('a'+i)), "Deep "+string(rune('A'+i)), domain.TypeDeepWork, start, start+60))
	}
	report := Validate(blocks, DefaultRules())
	if report.Valid {
		t.Fatal("expected invalid report")
	}
	var blockCount, minuteTotal, hardLimit bool
	for _, c := range report.Conflicts {
		if strings.Contains(c, "deep-work blocks exceed") {
			blockCount = true
		}
		if strings.Contains(c, "deep-work total") {
			minuteTotal = true
		}
		if strings.Contains(c, "hard blocks exceed") {
			hardLimit = true
		}
	}
	if !blockCount {
		t.Fatalf("missing deep-work count conflict: %v", report.Conflicts)
	}
	if !minuteTotal {
		t.Fatalf("missing deep-work minutes conflict: %v", report.Conflicts)
	}
	// Four 60m deep-work blocks are also four hard blocks.
	if !hardLimit {
		t.Fatalf("missing hard-block conflict: %v", report.Conflicts)
	}
}

func TestValidateHardBlockAdvisory(t *testing.T) {
	blocks := []Candidate{
		mustSpanCandidate(t, "a", "Deep A", domain.TypeDeepWork, 480, 540),
		mustSpanCandidate(t, "b", "Deep B", domain.TypeDeepWork, 540, 600),
		{ID: "c", Name: "Crunch", Type: domain.TypePersonal, Start: 720, End: 780, Difficulty: "hard"},
	}
	report := Validate(blocks, DefaultRules())
	if !report.Valid {
		t.Fatalf("three hard blocks are within the limit: %v", report.Conflicts)
	}
	found := false
	for _, a := range report.Advisories {
		if strings.Contains(a, "hard blocks") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected optimum advisory, got %v", report.Advisories)
	}
}

func TestValidateWindowAdvisories(t *testing.T) {
	blocks := []Candidate{
		mustSpanCandidate(t, "a", "Late focus", domain.TypeDeepWork, 1140, 1200), // 19:00-20:00
		mustSpanCandidate(t, "b", "Filing", domain.TypeAdmin, 660, 720),          // 11:00-12:00
	}
	report := Validate(blocks, DefaultRules())
	if !report.Valid {
		t.Fatalf("window misses must not reject: %v", report.Conflicts)
	}
	var deepFlagged, adminFlagged bool
	for _, a := range report.Advisories {
		if strings.Contains(a, "Late focus") {
			deepFlagged = true
		}
		if strings.Contains(a, "Filing") {
			adminFlagged = true
		}
	}
	if !deepFlagged {
		t.Fatalf("late deep work not flagged: %v", report.Advisories)
	}
	if adminFlagged {
		t.Fatalf("in-window admin wrongly flagged: %v", report.Advisories)
	}
}

func TestValidateKeepOrderRanksEventsFirst(t *testing.T) {
	blocks := []Candidate{
		mustSpanCandidate(t, "admin", "Email", domain.TypeAdmin, 660, 720),
		mustSpanCandidate(t, "deep", "Focus", domain.TypeDeepWork, 480, 540),
		mustSpanCandidate(t, "event", "Dentist", domain.TypeEvent, 600, 660),
		mustSpanCandidate(t, "routine", "Morning routine", domain.TypeRoutine, 420, 480),
	}
	report := Validate(blocks, DefaultRules())
	want := []string{"event", "routine", "deep", "admin"}
	if len(report.KeepOrder) != len(want) {
		t.Fatalf("keep order %v", report.KeepOrder)
	}
	for i, id := range want {
		if report.KeepOrder[i] != id {
			t.Fatalf("keep order %v, want %v", report.KeepOrder, want)
		}
	}
}

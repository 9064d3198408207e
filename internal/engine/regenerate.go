package engine

import (
	"context"
	"fmt"
	"strings"

	"dayline/internal/domain"
	"dayline/internal/plan"
	"dayline/internal/schedule"
)

// RegenerateResult pairs the rebuilt day with the planner's audit.
type RegenerateResult struct {
	Day   domain.Day `json:"day"`
	Audit plan.Audit `json:"audit"`
}

// Regenerate rewrites a day's schedule through a planner. The planner's
// audit is checked against the actual diff and the proposal must pass
// the hard validation checks before anything is written; an incomplete
// audit or a hard conflict rejects the whole proposal. The rebuild
// keeps persisted task identity, status and completion for every block
// and task the planner did not touch.
func (e Engine) Regenerate(ctx context.Context, dayID, userID, instruction string, planner plan.Planner, opts RebuildOptions) (RegenerateResult, error) {
	day, err := e.Repo.GetDay(ctx, dayID)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}
	if day.UserID != userID {
		return RegenerateResult{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}
	current, err := e.LoadDayBlocks(ctx, dayID)
	if err != nil {
		return RegenerateResult{}, err
	}

	proposed, audit, err := planner.Plan(ctx, current, instruction)
	if err != nil {
		return RegenerateResult{Audit: audit}, err
	}
	if err := plan.CheckAudit(current, proposed, audit, nil); err != nil {
		return RegenerateResult{Audit: audit}, err
	}

	// The audit alone does not prove the proposal is placeable; it must
	// also survive the hard checks, whether or not the planner ran them.
	candidates, err := Candidates(proposed)
	if err != nil {
		return RegenerateResult{Audit: audit}, err
	}
	if report := schedule.Validate(candidates, e.rules()); !report.Valid {
		return RegenerateResult{Audit: audit},
			fmt.Errorf("%s: %w", strings.Join(report.Conflicts, "; "), plan.ErrHardConflict)
	}

	proposal := make([]BlockProposal, 0, len(proposed))
	for _, b := range proposed {
		p := BlockProposal{
			Name:        b.Name,
			StartTime:   b.StartTime,
			EndTime:     b.EndTime,
			Type:        b.Type,
			Status:      b.Status,
			Difficulty:  b.Difficulty,
			EventID:     b.EventID,
			RoutineID:   b.RoutineID,
			MeetingLink: b.MeetingLink,
			Deadline:    b.Deadline,
		}
		if b.RoutineID == nil {
			for _, t := range b.Tasks {
				p.Tasks = append(p.Tasks, TaskProposal{Ref: domain.PersistedTask(t.ID)})
			}
		}
		proposal = append(proposal, p)
	}

	rebuilt, err := e.RebuildDay(ctx, dayID, userID, proposal, opts)
	if err != nil {
		return RegenerateResult{Audit: audit}, err
	}
	return RegenerateResult{Day: rebuilt, Audit: audit}, nil
}

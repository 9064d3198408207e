package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dayline/internal/domain"
	"dayline/internal/events"
	"dayline/internal/repo"
	"dayline/internal/timeutil"
)

// BlockProposal is one block of a proposed schedule. Status empty
// means pending; a rebuild that preserves blocks passes their current
// status through.
type BlockProposal struct {
	Name        string         `json:"name"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Type        string         `json:"type"`
	Status      string         `json:"status,omitempty"`
	Difficulty  string         `json:"difficulty,omitempty"`
	EventID     *string        `json:"event_id,omitempty"`
	RoutineID   *string        `json:"routine_id,omitempty"`
	MeetingLink *string        `json:"meeting_link,omitempty"`
	Deadline    *string        `json:"deadline,omitempty"`
	Tasks       []TaskProposal `json:"tasks,omitempty"`
}

// TaskProposal carries either a persisted task to re-parent or a draft
// to create. Fields other than Ref overwrite the persisted task when
// non-zero.
type TaskProposal struct {
	Ref         domain.TaskRef
	Name        string
	Description string
	Duration    int
	Priority    string
	ProjectID   *string
	Completed   *bool
}

// RebuildOptions tune a day rebuild. Destructive deletes the day's
// previous tasks instead of detaching them to the backlog.
type RebuildOptions struct {
	Destructive bool
	ActorID     string
}

// RebuildDay atomically replaces a day's schedule with the proposal.
// At most one rebuild per day id runs at a time; a concurrent attempt
// fails with ErrConflictingUpdate. Any failure, a missing referenced
// event or routine included, rolls the whole day back to its previous
// state. A failing error names the offending proposal entry by index.
func (e Engine) RebuildDay(ctx context.Context, dayID, userID string, proposal []BlockProposal, opts RebuildOptions) (domain.Day, error) {
	if !e.Locks.TryLock(dayID) {
		return domain.Day{}, fmt.Errorf("day %s: %w", dayID, ErrConflictingUpdate)
	}
	defer e.Locks.Unlock(dayID)

	// Reject malformed times before touching storage.
	spans := make([][2]int, len(proposal))
	for i, p := range proposal {
		s, en, err := timeutil.Span(p.StartTime, p.EndTime)
		if err != nil {
			return domain.Day{}, fmt.Errorf("proposal block %d (%s): %w", i, p.Name, err)
		}
		spans[i] = [2]int{s, en}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Day{}, err
	}
	defer tx.Rollback()

	day, err := e.Repo.GetDayTx(ctx, tx, dayID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Day{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
		}
		return domain.Day{}, err
	}
	if day.UserID != userID {
		return domain.Day{}, fmt.Errorf("day %s: %w", dayID, ErrDayNotFound)
	}

	now := e.nowRFC3339()
	if opts.Destructive {
		if err := e.Repo.DeleteTasksByDayTx(ctx, tx, dayID); err != nil {
			return domain.Day{}, err
		}
	} else {
		if err := e.Repo.DetachTasksFromDayTx(ctx, tx, dayID, now); err != nil {
			return domain.Day{}, err
		}
	}
	if err := e.Repo.DeleteBlocksByDayTx(ctx, tx, dayID); err != nil {
		return domain.Day{}, err
	}

	for i, p := range proposal {
		overlaps := false
		for j := range proposal {
			if j != i && timeutil.Overlaps(spans[i][0], spans[i][1], spans[j][0], spans[j][1]) {
				overlaps = true
				break
			}
		}
		if _, err := e.createBlockTx(ctx, tx, day, p, i, overlaps, now); err != nil {
			return domain.Day{}, fmt.Errorf("proposal block %d (%s): %w", i, p.Name, err)
		}
	}

	if err := e.Repo.TouchDayTx(ctx, tx, dayID, now); err != nil {
		return domain.Day{}, err
	}
	if err := e.Events.Append(ctx, tx, "day.rebuilt", userID, "day", dayID, opts.ActorID, events.EventPayload{
		"blocks": len(proposal), "destructive": opts.Destructive,
	}); err != nil {
		return domain.Day{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Day{}, err
	}
	return e.Repo.GetDay(ctx, dayID)
}

// createBlockTx persists one block and its tasks. Event-linked blocks
// load and back-link the calendar event; routine-derived blocks stamp
// fresh task instances from the template and ignore proposal tasks.
func (e Engine) createBlockTx(ctx context.Context, tx *sql.Tx, day domain.Day, p BlockProposal, idx int, outOfOrder bool, now string) (domain.Block, error) {
	blockType := p.Type
	if blockType == "" {
		blockType = domain.TypePersonal
	}
	status := p.Status
	if status == "" {
		status = domain.BlockPending
	}
	if status != domain.BlockPending && status != domain.BlockComplete && status != domain.BlockCancelled {
		return domain.Block{}, fmt.Errorf("status %q not allowed", p.Status)
	}
	b := domain.Block{
		ID:          uuid.NewString(),
		DayID:       day.ID,
		Name:        p.Name,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Status:      status,
		Type:        blockType,
		Index:       idx,
		Difficulty:  p.Difficulty,
		EventID:     p.EventID,
		RoutineID:   p.RoutineID,
		MeetingLink: p.MeetingLink,
		Deadline:    p.Deadline,
		OutOfOrder:  outOfOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if p.EventID != nil {
		evt, err := e.Repo.GetCalendarEventTx(ctx, tx, *p.EventID)
		if err != nil {
			return domain.Block{}, fmt.Errorf("event %s: %w", *p.EventID, err)
		}
		if b.MeetingLink == nil {
			b.MeetingLink = evt.MeetingLink
		}
		if b.Name == "" {
			b.Name = evt.Name
		}
	}

	var routine domain.Routine
	if p.RoutineID != nil {
		var err error
		routine, err = e.Repo.GetRoutineTx(ctx, tx, *p.RoutineID)
		if err != nil {
			return domain.Block{}, fmt.Errorf("routine %s: %w", *p.RoutineID, err)
		}
		if b.Name == "" {
			b.Name = routine.Name
		}
	}

	if err := e.Repo.InsertBlockTx(ctx, tx, b); err != nil {
		return domain.Block{}, fmt.Errorf("insert block: %w", err)
	}
	if p.EventID != nil {
		if err := e.Repo.LinkEventToBlockTx(ctx, tx, *p.EventID, b.ID); err != nil {
			return domain.Block{}, fmt.Errorf("link event %s: %w", *p.EventID, err)
		}
	}

	if p.RoutineID != nil {
		// Routine instances are always stamped fresh from the template.
		for _, tpl := range routine.Tasks {
			origID := tpl.ID
			t := domain.Task{
				ID:                    uuid.NewString(),
				UserID:                day.UserID,
				DayID:                 &day.ID,
				BlockID:               &b.ID,
				RoutineID:             p.RoutineID,
				Name:                  tpl.Name,
				Duration:              tpl.Duration,
				Priority:              tpl.Priority,
				Type:                  tpl.Type,
				IsRoutineTask:         true,
				OriginalRoutineTaskID: &origID,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
				return domain.Block{}, fmt.Errorf("stamp routine task %s: %w", tpl.Name, err)
			}
		}
		return b, nil
	}

	for _, tp := range p.Tasks {
		if id, ok := tp.Ref.PersistedID(); ok {
			existing, err := e.Repo.GetTaskTx(ctx, tx, id)
			if err != nil {
				return domain.Block{}, fmt.Errorf("task %s: %w", id, err)
			}
			if existing.UserID != day.UserID {
				return domain.Block{}, fmt.Errorf("task %s: %w", id, repo.ErrNotFound)
			}
			update := repo.TaskUpdate{BlockID: &b.ID, DayID: &day.ID}
			if tp.Name != "" {
				update.Name = &tp.Name
			}
			if tp.Description != "" {
				update.Description = &tp.Description
			}
			if tp.Duration > 0 {
				update.Duration = &tp.Duration
			}
			if tp.Priority != "" {
				update.Priority = &tp.Priority
			}
			if tp.ProjectID != nil {
				update.ProjectID = tp.ProjectID
			}
			if tp.Completed != nil {
				update.Completed = tp.Completed
			}
			if err := e.Repo.UpdateTaskTx(ctx, tx, id, update, now); err != nil {
				return domain.Block{}, fmt.Errorf("task %s: %w", id, err)
			}
			continue
		}
		t := domain.Task{
			ID:          uuid.NewString(),
			UserID:      day.UserID,
			DayID:       &day.ID,
			BlockID:     &b.ID,
			ProjectID:   tp.ProjectID,
			Name:        tp.Name,
			Description: tp.Description,
			Duration:    tp.Duration,
			Priority:    tp.Priority,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
			return domain.Block{}, fmt.Errorf("insert task %s: %w", tp.Name, err)
		}
	}
	return b, nil
}

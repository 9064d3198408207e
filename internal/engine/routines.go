package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dayline/internal/domain"
	"dayline/internal/events"
	"dayline/internal/repo"
	"dayline/internal/schedule"
	"dayline/internal/timeutil"
)

// StampRoutines instantiates the user's routines due on a date as
// blocks with fresh task copies. A routine that already has a block on
// the day is skipped, so stamping is safe to re-run.
func (e Engine) StampRoutines(ctx context.Context, userID, date, actorID string) (int, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, fmt.Errorf("date %q: %w", date, err)
	}
	weekday := strings.ToLower(parsed.Weekday().String())

	routines, err := e.Repo.ListRoutines(ctx, userID)
	if err != nil {
		return 0, err
	}
	due := routines[:0]
	for _, rt := range routines {
		if routineDue(rt, weekday) {
			due = append(due, rt)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	day, err := e.EnsureDay(ctx, userID, date, actorID)
	if err != nil {
		return 0, err
	}
	if !e.Locks.TryLock(day.ID) {
		return 0, fmt.Errorf("day %s: %w", day.ID, ErrConflictingUpdate)
	}
	defer e.Locks.Unlock(day.ID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.ListBlocksByDayTx(ctx, tx, day.ID)
	if err != nil {
		return 0, err
	}
	stampedRoutines := map[string]bool{}
	placed := make([]schedule.Placed, 0, len(existing))
	for _, b := range existing {
		if b.RoutineID != nil {
			stampedRoutines[*b.RoutineID] = true
		}
		s, en, err := timeutil.Span(b.StartTime, b.EndTime)
		if err != nil {
			return 0, fmt.Errorf("block %s: %w", b.ID, err)
		}
		placed = append(placed, schedule.Placed{ID: b.ID, Index: b.Index, Start: s, End: en})
	}

	now := e.nowRFC3339()
	stamped := 0
	for _, rt := range due {
		if stampedRoutines[rt.ID] {
			continue
		}
		s, en, err := timeutil.Span(rt.StartTime, rt.EndTime)
		if err != nil {
			return 0, fmt.Errorf("routine %s: %w", rt.ID, err)
		}
		placement := schedule.Place(placed, s, en)
		if err := e.Repo.ShiftBlockIndexesTx(ctx, tx, day.ID, placement.Index); err != nil {
			return 0, err
		}
		for i := range placed {
			if placed[i].Index >= placement.Index {
				placed[i].Index++
			}
		}
		routineID := rt.ID
		block, err := e.createBlockTx(ctx, tx, day, BlockProposal{
			Name:      rt.Name,
			StartTime: rt.StartTime,
			EndTime:   rt.EndTime,
			Type:      domain.TypeRoutine,
			RoutineID: &routineID,
		}, placement.Index, len(placement.Overlapping) > 0, now)
		if err != nil {
			return 0, err
		}
		placed = append(placed, schedule.Placed{ID: block.ID, Index: placement.Index, Start: s, End: en})
		if err := e.Events.Append(ctx, tx, "routine.stamped", userID, "block", block.ID, actorID, events.EventPayload{
			"routine_id": rt.ID, "date": date,
		}); err != nil {
			return 0, err
		}
		stamped++
	}
	if stamped == 0 {
		return 0, nil
	}
	if err := e.Repo.TouchDayTx(ctx, tx, day.ID, now); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stamped, nil
}

func routineDue(rt domain.Routine, weekday string) bool {
	if len(rt.Days) == 0 {
		return true
	}
	for _, d := range rt.Days {
		if strings.EqualFold(d, weekday) {
			return true
		}
	}
	return false
}

// CreateRoutine validates and stores a routine template.
func (e Engine) CreateRoutine(ctx context.Context, rt domain.Routine, actorID string) (domain.Routine, error) {
	if _, _, err := timeutil.Span(rt.StartTime, rt.EndTime); err != nil {
		return domain.Routine{}, err
	}
	for _, d := range rt.Days {
		if !validWeekday(d) {
			return domain.Routine{}, fmt.Errorf("weekday %q not recognized", d)
		}
	}
	if err := e.Repo.InsertRoutine(ctx, rt); err != nil {
		return domain.Routine{}, err
	}
	return e.Repo.GetRoutine(ctx, rt.ID)
}

func validWeekday(d string) bool {
	switch strings.ToLower(d) {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}

// CreateCalendarEvent validates and stores an external commitment.
func (e Engine) CreateCalendarEvent(ctx context.Context, evt domain.CalendarEvent, actorID string) (domain.CalendarEvent, error) {
	if _, err := time.Parse("2006-01-02", evt.Date); err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("date %q: %w", evt.Date, err)
	}
	if _, _, err := timeutil.Span(evt.StartTime, evt.EndTime); err != nil {
		return domain.CalendarEvent{}, err
	}
	if err := e.Repo.InsertCalendarEvent(ctx, evt); err != nil {
		return domain.CalendarEvent{}, err
	}
	got, err := e.Repo.GetCalendarEvent(ctx, evt.ID)
	if err != nil && errors.Is(err, repo.ErrNotFound) {
		return domain.CalendarEvent{}, fmt.Errorf("event %s vanished after insert", evt.ID)
	}
	return got, err
}

package repo

import (
	"context"
	"database/sql"

	"dayline/internal/domain"
)

const calendarCols = `id,user_id,name,date,start_time,end_time,location,meeting_link,block_id,created_at`

func scanCalendarEvent(scan func(dest ...any) error) (domain.CalendarEvent, error) {
	var e domain.CalendarEvent
	var meetingLink, blockID sql.NullString
	err := scan(&e.ID, &e.UserID, &e.Name, &e.Date, &e.StartTime, &e.EndTime, &e.Location,
		&meetingLink, &blockID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.MeetingLink = ptr(meetingLink)
	e.BlockID = ptr(blockID)
	return e, nil
}

func (r Repo) InsertCalendarEvent(ctx context.Context, e domain.CalendarEvent) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO calendar_events(`+calendarCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, e.Name, e.Date, e.StartTime, e.EndTime, e.Location,
		nullablePtr(e.MeetingLink), nullablePtr(e.BlockID), e.CreatedAt)
	return err
}

func (r Repo) GetCalendarEvent(ctx context.Context, id string) (domain.CalendarEvent, error) {
	return getCalendarEvent(ctx, r.DB, id)
}

func (r Repo) GetCalendarEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.CalendarEvent, error) {
	return getCalendarEvent(ctx, tx, id)
}

func getCalendarEvent(ctx context.Context, q querier, id string) (domain.CalendarEvent, error) {
	row := q.QueryRowContext(ctx, `SELECT `+calendarCols+` FROM calendar_events WHERE id=?`, id)
	return scanCalendarEvent(row.Scan)
}

func (r Repo) ListCalendarEventsByDate(ctx context.Context, userID, date string) ([]domain.CalendarEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+calendarCols+` FROM calendar_events WHERE user_id=? AND date=? ORDER BY start_time`, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CalendarEvent
	for rows.Next() {
		e, err := scanCalendarEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LinkEventToBlockTx back-links the calendar event to the block that
// now represents it on the schedule.
func (r Repo) LinkEventToBlockTx(ctx context.Context, tx *sql.Tx, eventID, blockID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE calendar_events SET block_id=? WHERE id=?`, nullable(blockID), eventID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

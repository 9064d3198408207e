package repo

import (
	"context"
	"database/sql"

	"dayline/internal/domain"
)

const blockCols = `id,day_id,name,start_time,end_time,status,type,idx,difficulty,event_id,routine_id,meeting_link,deadline,out_of_order,created_at,updated_at`

func scanBlock(scan func(dest ...any) error) (domain.Block, error) {
	var b domain.Block
	var difficulty, eventID, routineID, meetingLink, deadline sql.NullString
	err := scan(&b.ID, &b.DayID, &b.Name, &b.StartTime, &b.EndTime, &b.Status, &b.Type, &b.Index,
		&difficulty, &eventID, &routineID, &meetingLink, &deadline, &b.OutOfOrder, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if difficulty.Valid {
		b.Difficulty = difficulty.String
	}
	b.EventID = ptr(eventID)
	b.RoutineID = ptr(routineID)
	b.MeetingLink = ptr(meetingLink)
	b.Deadline = ptr(deadline)
	return b, nil
}

func (r Repo) InsertBlockTx(ctx context.Context, tx *sql.Tx, b domain.Block) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO blocks(`+blockCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.DayID, b.Name, b.StartTime, b.EndTime, b.Status, b.Type, b.Index,
		nullable(b.Difficulty), nullablePtr(b.EventID), nullablePtr(b.RoutineID),
		nullablePtr(b.MeetingLink), nullablePtr(b.Deadline), b.OutOfOrder, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r Repo) GetBlock(ctx context.Context, id string) (domain.Block, error) {
	return getBlock(ctx, r.DB, id)
}

func (r Repo) GetBlockTx(ctx context.Context, tx *sql.Tx, id string) (domain.Block, error) {
	return getBlock(ctx, tx, id)
}

func getBlock(ctx context.Context, q querier, id string) (domain.Block, error) {
	row := q.QueryRowContext(ctx, `SELECT `+blockCols+` FROM blocks WHERE id=?`, id)
	b, err := scanBlock(row.Scan)
	if err != nil {
		return b, err
	}
	b.TaskIDs, err = taskIDsByBlock(ctx, q, id)
	return b, err
}

// ListBlocksByDay returns the day's blocks in index order, each with
// its task-id list populated.
func (r Repo) ListBlocksByDay(ctx context.Context, dayID string) ([]domain.Block, error) {
	return listBlocksByDay(ctx, r.DB, dayID)
}

func (r Repo) ListBlocksByDayTx(ctx context.Context, tx *sql.Tx, dayID string) ([]domain.Block, error) {
	return listBlocksByDay(ctx, tx, dayID)
}

func listBlocksByDay(ctx context.Context, q querier, dayID string) ([]domain.Block, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+blockCols+` FROM blocks WHERE day_id=? ORDER BY idx`, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Block
	for rows.Next() {
		b, err := scanBlock(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].TaskIDs, err = taskIDsByBlock(ctx, q, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ShiftBlockIndexesTx moves every block at or above fromIndex up by one.
func (r Repo) ShiftBlockIndexesTx(ctx context.Context, tx *sql.Tx, dayID string, fromIndex int) error {
	_, err := tx.ExecContext(ctx, `UPDATE blocks SET idx=idx+1 WHERE day_id=? AND idx>=?`, dayID, fromIndex)
	return err
}

func (r Repo) DeleteBlocksByDayTx(ctx context.Context, tx *sql.Tx, dayID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE day_id=?`, dayID)
	return err
}

func (r Repo) UpdateBlockStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE blocks SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetBlockOutOfOrderTx(ctx context.Context, tx *sql.Tx, id string, outOfOrder bool, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE blocks SET out_of_order=?, updated_at=? WHERE id=?`, outOfOrder, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

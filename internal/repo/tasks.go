package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dayline/internal/domain"
)

const taskCols = `id,user_id,day_id,block_id,project_id,routine_id,event_id,name,description,duration,priority,type,completed,is_routine_task,original_routine_task_id,created_at,updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var dayID, blockID, projectID, routineID, eventID, origRoutineTask sql.NullString
	err := scan(&t.ID, &t.UserID, &dayID, &blockID, &projectID, &routineID, &eventID,
		&t.Name, &t.Description, &t.Duration, &t.Priority, &t.Type, &t.Completed,
		&t.IsRoutineTask, &origRoutineTask, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.DayID = ptr(dayID)
	t.BlockID = ptr(blockID)
	t.ProjectID = ptr(projectID)
	t.RoutineID = ptr(routineID)
	t.EventID = ptr(eventID)
	t.OriginalRoutineTaskID = ptr(origRoutineTask)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	return insertTask(ctx, r.DB, t)
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	return insertTask(ctx, tx, t)
}

func insertTask(ctx context.Context, q querier, t domain.Task) error {
	_, err := q.ExecContext(ctx, `INSERT INTO tasks(`+taskCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, nullablePtr(t.DayID), nullablePtr(t.BlockID), nullablePtr(t.ProjectID),
		nullablePtr(t.RoutineID), nullablePtr(t.EventID), t.Name, t.Description, t.Duration,
		t.Priority, t.Type, t.Completed, t.IsRoutineTask, nullablePtr(t.OriginalRoutineTaskID),
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func getTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) ListTasksByBlock(ctx context.Context, blockID string) ([]domain.Task, error) {
	return listTasks(ctx, r.DB, `block_id=?`, blockID)
}

func (r Repo) ListTasksByBlockTx(ctx context.Context, tx *sql.Tx, blockID string) ([]domain.Task, error) {
	return listTasks(ctx, tx, `block_id=?`, blockID)
}

func (r Repo) ListTasksByDayTx(ctx context.Context, tx *sql.Tx, dayID string) ([]domain.Task, error) {
	return listTasks(ctx, tx, `day_id=?`, dayID)
}

// ListBacklogTasks returns the user's unscheduled tasks.
func (r Repo) ListBacklogTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	return listTasks(ctx, r.DB, `user_id=? AND block_id IS NULL`, userID)
}

func (r Repo) ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	return listTasks(ctx, r.DB, `user_id=?`, userID)
}

func listTasks(ctx context.Context, q querier, where string, args ...any) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func taskIDsByBlock(ctx context.Context, q querier, blockID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE block_id=? ORDER BY created_at, id`, blockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TaskUpdate names the mutable task fields; nil means leave unchanged.
type TaskUpdate struct {
	Name        *string
	Description *string
	Duration    *int
	Priority    *string
	Completed   *bool
	BlockID     *string // empty string detaches to backlog
	DayID       *string
	ProjectID   *string // empty string clears the project link
}

func (r Repo) UpdateTask(ctx context.Context, id string, u TaskUpdate, updatedAt string) error {
	return updateTask(ctx, r.DB, id, u, updatedAt)
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, id string, u TaskUpdate, updatedAt string) error {
	return updateTask(ctx, tx, id, u, updatedAt)
}

func updateTask(ctx context.Context, q querier, id string, u TaskUpdate, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if u.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *u.Name)
	}
	if u.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, *u.Description)
	}
	if u.Duration != nil {
		fields = append(fields, "duration=?")
		args = append(args, *u.Duration)
	}
	if u.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, *u.Priority)
	}
	if u.Completed != nil {
		fields = append(fields, "completed=?")
		args = append(args, *u.Completed)
	}
	if u.BlockID != nil {
		fields = append(fields, "block_id=?")
		args = append(args, nullable(*u.BlockID))
	}
	if u.DayID != nil {
		fields = append(fields, "day_id=?")
		args = append(args, nullable(*u.DayID))
	}
	if u.ProjectID != nil {
		fields = append(fields, "project_id=?")
		args = append(args, nullable(*u.ProjectID))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := q.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DetachTasksFromDayTx sends a day's tasks to the backlog. Routine-stamped
// task instances are deleted instead; they are recreated from the
// template on the next generation.
func (r Repo) DetachTasksFromDayTx(ctx context.Context, tx *sql.Tx, dayID, updatedAt string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE day_id=? AND is_routine_task=1`, dayID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET day_id=NULL, block_id=NULL, updated_at=? WHERE day_id=?`, updatedAt, dayID)
	return err
}

// DeleteTasksByDayTx removes a day's tasks outright (destructive rebuild).
func (r Repo) DeleteTasksByDayTx(ctx context.Context, tx *sql.Tx, dayID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE day_id=?`, dayID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	return deleteTask(ctx, r.DB, id)
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	return deleteTask(ctx, tx, id)
}

func deleteTask(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dayline/internal/domain"
)

func (r Repo) InsertRoutine(ctx context.Context, rt domain.Routine) error {
	days, err := json.Marshal(rt.Days)
	if err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO routines(id,user_id,name,start_time,end_time,days_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		rt.ID, rt.UserID, rt.Name, rt.StartTime, rt.EndTime, string(days), rt.CreatedAt); err != nil {
		return err
	}
	for _, t := range rt.Tasks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO routine_tasks(id,routine_id,name,duration,priority,type) VALUES (?,?,?,?,?,?)`,
			t.ID, rt.ID, t.Name, t.Duration, t.Priority, t.Type); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r Repo) GetRoutine(ctx context.Context, id string) (domain.Routine, error) {
	return getRoutine(ctx, r.DB, id)
}

func (r Repo) GetRoutineTx(ctx context.Context, tx *sql.Tx, id string) (domain.Routine, error) {
	return getRoutine(ctx, tx, id)
}

func getRoutine(ctx context.Context, q querier, id string) (domain.Routine, error) {
	var rt domain.Routine
	var days string
	err := q.QueryRowContext(ctx, `SELECT id,user_id,name,start_time,end_time,days_json,created_at FROM routines WHERE id=?`, id).
		Scan(&rt.ID, &rt.UserID, &rt.Name, &rt.StartTime, &rt.EndTime, &days, &rt.CreatedAt)
	if err == sql.ErrNoRows {
		return rt, ErrNotFound
	}
	if err != nil {
		return rt, err
	}
	if err := json.Unmarshal([]byte(days), &rt.Days); err != nil {
		return rt, fmt.Errorf("routine %s days: %w", id, err)
	}
	rt.Tasks, err = routineTasks(ctx, q, id)
	return rt, err
}

func routineTasks(ctx context.Context, q querier, routineID string) ([]domain.RoutineTask, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,routine_id,name,duration,priority,type FROM routine_tasks WHERE routine_id=? ORDER BY id`, routineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RoutineTask
	for rows.Next() {
		var t domain.RoutineTask
		if err := rows.Scan(&t.ID, &t.RoutineID, &t.Name, &t.Duration, &t.Priority, &t.Type); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListRoutines returns all of a user's routines with template tasks.
func (r Repo) ListRoutines(ctx context.Context, userID string) ([]domain.Routine, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM routines WHERE user_id=? ORDER BY start_time, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var res []domain.Routine
	for _, id := range ids {
		rt, err := r.GetRoutine(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, rt)
	}
	return res, nil
}

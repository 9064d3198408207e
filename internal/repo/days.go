package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dayline/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,created_at) VALUES (?,?,?)`,
		u.ID, nullable(u.Name), u.CreatedAt)
	return err
}

// EnsureUser inserts the user if missing.
func (r Repo) EnsureUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id,name,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO NOTHING`, u.ID, nullable(u.Name), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) InsertDay(ctx context.Context, d domain.Day) error {
	return insertDay(ctx, r.DB, d)
}

func (r Repo) InsertDayTx(ctx context.Context, tx *sql.Tx, d domain.Day) error {
	return insertDay(ctx, tx, d)
}

func insertDay(ctx context.Context, q querier, d domain.Day) error {
	_, err := q.ExecContext(ctx, `INSERT INTO days(id,user_id,date,completed,rating_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.UserID, d.Date, d.Completed, ratingJSON(d.Rating), d.CreatedAt, d.UpdatedAt)
	return err
}

func ratingJSON(r *domain.PerformanceRating) any {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return string(data)
}

// GetDay returns the day with its block-id list in index order.
func (r Repo) GetDay(ctx context.Context, id string) (domain.Day, error) {
	return getDay(ctx, r.DB, id)
}

func (r Repo) GetDayTx(ctx context.Context, tx *sql.Tx, id string) (domain.Day, error) {
	return getDay(ctx, tx, id)
}

func getDay(ctx context.Context, q querier, id string) (domain.Day, error) {
	var d domain.Day
	var rating sql.NullString
	err := q.QueryRowContext(ctx, `SELECT id,user_id,date,completed,rating_json,created_at,updated_at FROM days WHERE id=?`, id).
		Scan(&d.ID, &d.UserID, &d.Date, &d.Completed, &rating, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if rating.Valid {
		var pr domain.PerformanceRating
		if err := json.Unmarshal([]byte(rating.String), &pr); err != nil {
			return d, fmt.Errorf("day %s rating: %w", id, err)
		}
		d.Rating = &pr
	}
	d.BlockIDs, err = blockIDs(ctx, q, id)
	return d, err
}

func blockIDs(ctx context.Context, q querier, dayID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM blocks WHERE day_id=? ORDER BY idx`, dayID)
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

// GetDayByDate returns a user's day for a calendar date.
func (r Repo) GetDayByDate(ctx context.Context, userID, date string) (domain.Day, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM days WHERE user_id=? AND date=?`, userID, date).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.Day{}, ErrNotFound
	}
	if err != nil {
		return domain.Day{}, err
	}
	return r.GetDay(ctx, id)
}

func (r Repo) ListDays(ctx context.Context, userID string) ([]domain.Day, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM days WHERE user_id=? ORDER BY date DESC`, userID)
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
	var res []domain.Day
	for _, id := range ids {
		d, err := r.GetDay(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) TouchDayTx(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE days SET updated_at=? WHERE id=?`, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetDayCompletedTx(ctx context.Context, tx *sql.Tx, id string, completed bool, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE days SET completed=?, updated_at=? WHERE id=?`, completed, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDayRatingTx persists a scoring result on the day.
func (r Repo) SetDayRatingTx(ctx context.Context, tx *sql.Tx, id string, rating *domain.PerformanceRating, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE days SET rating_json=?, updated_at=? WHERE id=?`, ratingJSON(rating), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

package repo

import (
	"context"
	"database/sql"

	"dayline/internal/domain"
)

// ListEvents returns audit rows, newest first. Empty userID lists all
// users; limit 0 means no limit.
func (r Repo) ListEvents(ctx context.Context, userID string, limit int) ([]domain.ChangeEvent, error) {
	query := `SELECT id,ts,type,user_id,entity_kind,entity_id,actor_id,payload_json FROM events`
	var args []any
	if userID != "" {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChangeEvent
	for rows.Next() {
		var e domain.ChangeEvent
		var uid, entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &uid, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if uid.Valid {
			e.UserID = uid.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

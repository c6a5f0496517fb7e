package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"parley/internal/core/domain"
)

type CallRepo struct {
	db    *sql.DB
	types *pgtype.Map
}

var _ domain.CallRepository = (*CallRepo)(nil)

func NewCallRepo(db *sql.DB) *CallRepo {
	return &CallRepo{db: db, types: pgtype.NewMap()}
}

// SaveCallRecord folds a journal record into the call_sessions row of its
// room. A start resets the row so a reused room id begins a new session,
// unless the row already ended at or after that start: records retried from
// the journal can arrive after the end of their own call.
func (r *CallRepo) SaveCallRecord(ctx context.Context, rec domain.CallRecord) error {
	exec := GetExecutor(ctx, r.db)
	var query string
	switch rec.Kind {
	case domain.CallStarted:
		query = `
			INSERT INTO call_sessions (room_id, participants, started_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (room_id) DO UPDATE
			SET participants = EXCLUDED.participants,
				started_at = EXCLUDED.started_at,
				ended_at = CASE
					WHEN call_sessions.ended_at >= EXCLUDED.started_at THEN call_sessions.ended_at
					ELSE NULL
				END`
	case domain.CallEnded:
		query = `
			INSERT INTO call_sessions (room_id, participants, started_at, ended_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (room_id) DO UPDATE
			SET ended_at = EXCLUDED.ended_at`
	default:
		return fmt.Errorf("%w: call record kind %q", domain.ErrInvalidInput, rec.Kind)
	}
	_, err := exec.ExecContext(ctx, query, rec.RoomID, rec.Participants, rec.At)
	return err
}

func (r *CallRepo) ListCallsForUser(ctx context.Context, userID string, limit int) ([]domain.CallSession, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT room_id, participants, started_at, ended_at
		FROM call_sessions
		WHERE $1 = ANY(participants)
		ORDER BY started_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := []domain.CallSession{}
	for rows.Next() {
		var (
			s     domain.CallSession
			ended sql.NullTime
		)
		if err := rows.Scan(&s.RoomID, r.types.SQLScanner(&s.Participants), &s.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.EndedAt = &ended.Time
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"parley/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{
		db: db,
	}
}

const messageColumns = `m.id, m.sender_id, m.receiver_id, m.group_id, m.text, m.image, m.audio,
	m.file, m.file_name, m.is_deleted, m.created_at, m.updated_at`

func scanMessage(row scanner, extra ...any) (*domain.Message, error) {
	var (
		m        domain.Message
		receiver sql.NullString
		group    sql.NullString
	)
	dest := []any{
		&m.ID, &m.SenderID, &receiver, &group, &m.Text, &m.Image, &m.Audio,
		&m.File, &m.FileName, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	m.ReceiverID = receiver.String
	m.GroupID = group.String
	return &m, nil
}

func collectMessages(rows *sql.Rows) ([]domain.Message, error) {
	defer rows.Close()
	msgs := []domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// CreateMessage stores m, assigning an id when empty.
func (r *MessageRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	if (m.ReceiverID == "") == (m.GroupID == "") {
		return domain.ErrInvalidInput
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	exec := GetExecutor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
		INSERT INTO messages (
			id, sender_id, receiver_id, group_id, text, image, audio, file, file_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		m.ID,
		m.SenderID,
		nullable(m.ReceiverID),
		nullable(m.GroupID),
		m.Text,
		m.Image,
		m.Audio,
		m.File,
		m.FileName,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *MessageRepo) GetMessageByID(ctx context.Context, id string) (*domain.Message, error) {
	if !validID(id) {
		return nil, domain.ErrMessageNotFound
	}
	exec := GetExecutor(ctx, r.db)
	m, err := scanMessage(exec.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages m WHERE m.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	return m, err
}

func (r *MessageRepo) ListDirect(ctx context.Context, a, b string) ([]domain.Message, error) {
	if !validID(a) || !validID(b) {
		return []domain.Message{}, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at ASC`, a, b)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListGroup returns the group's messages with their senders attached.
func (r *MessageRepo) ListGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	if !validID(groupID) {
		return []domain.Message{}, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+messageColumns+`, u.id, u.full_name, u.email, u.profile_pic, u.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.group_id = $1
		ORDER BY m.created_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []domain.Message{}
	for rows.Next() {
		var s domain.User
		m, err := scanMessage(rows, &s.ID, &s.FullName, &s.Email, &s.ProfilePic, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		m.Sender = &s
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id string) (*domain.Message, error) {
	if !validID(id) {
		return nil, domain.ErrMessageNotFound
	}
	exec := GetExecutor(ctx, r.db)
	m, err := scanMessage(exec.QueryRowContext(ctx, `
		UPDATE messages m
		SET is_deleted = true, text = '', image = '', audio = '', file = '', updated_at = now()
		WHERE m.id = $1
		RETURNING `+messageColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	return m, err
}

// SearchDirect runs a full text match over the a/b conversation.
func (r *MessageRepo) SearchDirect(ctx context.Context, a, b, query string, limit int) ([]domain.Message, error) {
	if !validID(a) || !validID(b) {
		return []domain.Message{}, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE ((m.sender_id = $1 AND m.receiver_id = $2)
		    OR (m.sender_id = $2 AND m.receiver_id = $1))
		  AND to_tsvector('simple', m.text) @@ plainto_tsquery('simple', $3)
		ORDER BY m.created_at DESC
		LIMIT $4`, a, b, query, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *MessageRepo) DeleteGroupMessages(ctx context.Context, groupID string) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `DELETE FROM messages WHERE group_id = $1`, groupID)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"parley/internal/core/domain"
)

type GroupRepo struct {
	db *sql.DB
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

/*
	-- Groups own their member list; rooms in the relay are never derived from it.
	CREATE TABLE group_members (
		group_id  UUID NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		user_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (group_id, user_id)
	);
*/

// CreateGroup inserts g and its members. Callers wrap it in a transaction.
func (r *GroupRepo) CreateGroup(ctx context.Context, g *domain.Group, memberIDs []string) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		INSERT INTO groups (id, name, admin_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, g.AdminID,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return err
	}
	for _, userID := range memberIDs {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, g.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *GroupRepo) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	if !validID(id) {
		return nil, domain.ErrGroupNotFound
	}
	exec := GetExecutor(ctx, r.db)
	g := &domain.Group{}
	err := exec.QueryRowContext(ctx, `
		SELECT id, name, admin_id, created_at, updated_at
		FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.AdminID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	if g.Users, err = r.members(ctx, exec, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	groups := []domain.Group{}
	if !validID(userID) {
		return groups, nil
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT g.id, g.name, g.admin_id, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.AdminID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].Users, err = r.members(ctx, exec, groups[i].ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (r *GroupRepo) members(ctx context.Context, exec execer, groupID string) ([]domain.User, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT u.id, u.full_name, u.email, u.password_hash, u.profile_pic, u.created_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at, u.full_name`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrAlreadyMember
	}
	return r.touch(ctx, exec, groupID)
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrNotMember
	}
	return r.touch(ctx, exec, groupID)
}

func (r *GroupRepo) touch(ctx context.Context, exec execer, groupID string) error {
	_, err := exec.ExecContext(ctx, `UPDATE groups SET updated_at = now() WHERE id = $1`, groupID)
	return err
}

func (r *GroupRepo) DeleteGroup(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrGroupNotFound
	}
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

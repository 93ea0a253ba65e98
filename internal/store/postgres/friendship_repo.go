package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"relaychat/internal/domain"
)

type FriendshipRepo struct {
	db *sql.DB
}

func NewFriendshipRepo(db *sql.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

var _ domain.FriendshipRepository = (*FriendshipRepo)(nil)

func (r *FriendshipRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	low, high := domain.CanonicalPair(a, b)
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM friendships WHERE low_identity = $1 AND high_identity = $2)
	`, low, high).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

func (r *FriendshipRepo) Add(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("add friendship: %w", domain.ErrConflict)
	}
	low, high := domain.CanonicalPair(a, b)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO friendships (low_identity, high_identity)
		VALUES ($1, $2)
		ON CONFLICT (low_identity, high_identity) DO NOTHING
	`, low, high)
	if err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	return nil
}

func (r *FriendshipRepo) ListFor(ctx context.Context, identity string) ([]*domain.Friendship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT low_identity, high_identity, low_alias, high_alias, created_at
		FROM friendships
		WHERE low_identity = $1 OR high_identity = $1
		ORDER BY created_at ASC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	var res []*domain.Friendship
	for rows.Next() {
		f := &domain.Friendship{}
		if err := rows.Scan(&f.Low, &f.High, &f.LowAlias, &f.HighAlias, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

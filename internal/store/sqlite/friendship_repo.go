package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

type FriendshipRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewFriendshipRepo(db *sql.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db, now: time.Now}
}

var _ domain.FriendshipRepository = (*FriendshipRepo)(nil)

func (r *FriendshipRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	low, high := domain.CanonicalPair(a, b)
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM friendships WHERE low_identity = ? AND high_identity = ?)
	`, low, high).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists == 1, nil
}

func (r *FriendshipRepo) Add(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("add friendship: %w", domain.ErrConflict)
	}
	low, high := domain.CanonicalPair(a, b)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO friendships (low_identity, high_identity, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (low_identity, high_identity) DO NOTHING
	`, low, high, toNanos(r.now()))
	if err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	return nil
}

func (r *FriendshipRepo) ListFor(ctx context.Context, identity string) ([]*domain.Friendship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT low_identity, high_identity, low_alias, high_alias, created_at
		FROM friendships
		WHERE low_identity = ? OR high_identity = ?
		ORDER BY created_at ASC
	`, identity, identity)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()

	var res []*domain.Friendship
	for rows.Next() {
		f := &domain.Friendship{}
		var created int64
		if err := rows.Scan(&f.Low, &f.High, &f.LowAlias, &f.HighAlias, &created); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		f.CreatedAt = fromNanos(created)
		res = append(res, f)
	}
	return res, rows.Err()
}

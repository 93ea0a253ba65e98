package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

var _ domain.SubscriptionRepository = (*SubscriptionRepo)(nil)

func (r *SubscriptionRepo) IsActive(ctx context.Context, identity string, now time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM subscriptions WHERE identity = $1 AND expires_at > $2)
	`, identity, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return exists, nil
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, s *domain.Subscription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (identity, tier, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET tier = EXCLUDED.tier, expires_at = EXCLUDED.expires_at
	`, s.Identity, s.Tier, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

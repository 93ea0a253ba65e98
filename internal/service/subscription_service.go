package service

import (
	"context"
	"time"

	"relaychat/internal/domain"
)

// SubscriptionService answers paid-tier questions from the subscription
// table.
type SubscriptionService struct {
	repo domain.SubscriptionRepository
	now  func() time.Time
}

func NewSubscriptionService(repo domain.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo, now: time.Now}
}

var _ SubscriptionChecker = (*SubscriptionService)(nil)

func (s *SubscriptionService) IsPaidTier(ctx context.Context, identity string) (bool, error) {
	return s.repo.IsActive(ctx, identity, s.now())
}

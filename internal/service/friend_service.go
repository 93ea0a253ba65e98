package service

import (
	"context"

	"go.uber.org/zap"

	"relaychat/internal/domain"
)

// FriendService manages the relationship graph that gates messaging.
type FriendService struct {
	friends domain.FriendshipRepository
	subs    SubscriptionChecker
	log     *zap.Logger
}

func NewFriendService(friends domain.FriendshipRepository, subs SubscriptionChecker, log *zap.Logger) *FriendService {
	return &FriendService{friends: friends, subs: subs, log: log.Named("friends")}
}

// Add befriends target. Only identities with an active subscription can be
// added; anything else is reported as not found.
func (s *FriendService) Add(ctx context.Context, identity, target string) error {
	if target == "" || target == identity {
		return domain.InvalidRequest("a different identity is required")
	}
	paid, err := s.subs.IsPaidTier(ctx, target)
	if err != nil {
		s.log.Error("subscription lookup failed", zap.String("target", target), zap.Error(err))
		return domain.Internal("check subscription", err)
	}
	if !paid {
		return domain.NotFound("identity not found")
	}
	if err := s.friends.Add(ctx, identity, target); err != nil {
		s.log.Error("add friendship failed", zap.String("identity", identity), zap.Error(err))
		return domain.Internal("add friendship", err)
	}
	return nil
}

func (s *FriendService) List(ctx context.Context, identity string) ([]*domain.Friendship, error) {
	list, err := s.friends.ListFor(ctx, identity)
	if err != nil {
		s.log.Error("list friendships failed", zap.String("identity", identity), zap.Error(err))
		return nil, domain.Internal("list friendships", err)
	}
	if list == nil {
		list = []*domain.Friendship{}
	}
	return list, nil
}

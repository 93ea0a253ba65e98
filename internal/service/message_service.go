package service

import (
	"context"

	"go.uber.org/zap"

	"relaychat/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// MessageService serves conversation history and read receipts.
type MessageService struct {
	friends  domain.FriendshipRepository
	messages domain.MessageRepository
	log      *zap.Logger
}

func NewMessageService(friends domain.FriendshipRepository, messages domain.MessageRepository, log *zap.Logger) *MessageService {
	return &MessageService{friends: friends, messages: messages, log: log.Named("messages")}
}

// History returns the most recent messages between identity and peer, oldest
// first. Only friends can read a conversation.
func (s *MessageService) History(ctx context.Context, identity, peer string, limit int) ([]*domain.Message, error) {
	if peer == "" {
		return nil, domain.InvalidRequest("peer is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	ok, err := s.friends.AreFriends(ctx, identity, peer)
	if err != nil {
		s.log.Error("friendship check failed", zap.String("identity", identity), zap.Error(err))
		return nil, domain.Internal("check friendship", err)
	}
	if !ok {
		return nil, domain.NotFriends("you can only read conversations with your friends")
	}

	msgs, err := s.messages.History(ctx, identity, peer, limit)
	if err != nil {
		s.log.Error("load history failed", zap.String("identity", identity), zap.Error(err))
		return nil, domain.Internal("load history", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// MarkRead stamps every unread message from sender to recipient. Calling it
// again changes nothing.
func (s *MessageService) MarkRead(ctx context.Context, recipient, sender string) (int64, error) {
	if sender == "" {
		return 0, domain.InvalidRequest("peer is required")
	}
	n, err := s.messages.MarkRead(ctx, recipient, sender)
	if err != nil {
		s.log.Error("mark read failed", zap.String("recipient", recipient), zap.Error(err))
		return 0, domain.Internal("mark read", err)
	}
	return n, nil
}

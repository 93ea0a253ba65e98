package domain

import (
	"context"
	"time"
)

// FriendshipRepository defines persistence operations for friendships.
type FriendshipRepository interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// Add is idempotent; adding an existing pair is not an error.
	Add(ctx context.Context, a, b string) error
	ListFor(ctx context.Context, identity string) ([]*Friendship, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Append stores m and fills in its ID and CreatedAt.
	Append(ctx context.Context, m *Message) error
	// MarkRead stamps every unread message from sender to recipient and
	// returns how many rows changed.
	MarkRead(ctx context.Context, recipient, sender string) (int64, error)
	// History returns up to limit of the most recent messages exchanged
	// between a and b, oldest first.
	History(ctx context.Context, a, b string, limit int) ([]*Message, error)
	CountSentBetween(ctx context.Context, from string, start, end time.Time) (int, error)
}

// CriticalWordRepository reads the moderation word list.
type CriticalWordRepository interface {
	// List returns every critical word in ascending order.
	List(ctx context.Context) ([]string, error)
}

// FlaggedConversationRepository stores moderation records.
type FlaggedConversationRepository interface {
	Create(ctx context.Context, f *FlaggedConversation) error
	ListUnreviewed(ctx context.Context, limit int) ([]*FlaggedConversation, error)
}

// TempFileRepository stores ephemeral file metadata.
type TempFileRepository interface {
	Create(ctx context.Context, f *TempFile) error
	GetByID(ctx context.Context, id string) (*TempFile, error)
	// Claim atomically marks an undownloaded file as downloaded and reports
	// whether this call won the claim.
	Claim(ctx context.Context, id string) (bool, error)
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*TempFile, error)
}

// SubscriptionRepository looks up paid tier state.
type SubscriptionRepository interface {
	IsActive(ctx context.Context, identity string, now time.Time) (bool, error)
	Upsert(ctx context.Context, s *Subscription) error
}

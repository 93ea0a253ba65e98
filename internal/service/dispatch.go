package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/metrics"
	"relaychat/internal/moderation"
	"relaychat/internal/protocol"
)

const (
	// MaxTextLength is the longest accepted message text, in characters.
	MaxTextLength = 5000
	// FreeDailyMessageLimit is how many messages a free identity may send
	// per UTC calendar day.
	FreeDailyMessageLimit = 10
)

// SubscriptionChecker reports whether an identity is on a paid tier.
type SubscriptionChecker interface {
	IsPaidTier(ctx context.Context, identity string) (bool, error)
}

// Deliverer pushes a frame to every live connection of identity. Delivery is
// best effort and never fails the caller.
type Deliverer interface {
	Deliver(ctx context.Context, identity string, frame any)
}

// ContentScanner is the moderation check run before a message is stored.
type ContentScanner interface {
	Scan(ctx context.Context, text, pairLow, pairHigh string) (moderation.Outcome, error)
}

type DispatchInput struct {
	From    string
	To      string
	Text    *string
	FileRef *string
}

type DispatchResult struct {
	MessageID int64
	Flagged   bool
	CreatedAt time.Time
}

// Dispatcher runs every outbound message through validation, the friendship
// gate, the free-tier quota and moderation, then stores and delivers it. Both
// ingress paths call the same Dispatch.
type Dispatcher struct {
	friends  domain.FriendshipRepository
	messages domain.MessageRepository
	flags    domain.FlaggedConversationRepository
	subs     SubscriptionChecker
	quota    *QuotaTracker
	scanner  ContentScanner
	deliver  Deliverer
	log      *zap.Logger
}

func NewDispatcher(
	friends domain.FriendshipRepository,
	messages domain.MessageRepository,
	flags domain.FlaggedConversationRepository,
	subs SubscriptionChecker,
	quota *QuotaTracker,
	scanner ContentScanner,
	deliver Deliverer,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		friends:  friends,
		messages: messages,
		flags:    flags,
		subs:     subs,
		quota:    quota,
		scanner:  scanner,
		deliver:  deliver,
		log:      log.Named("dispatch"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, in)

	outcome := "accepted"
	if err != nil {
		outcome = string(domain.CodeOf(err))
	}
	metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	if in.From == "" {
		return nil, domain.Unauthenticated("no authenticated identity")
	}
	text, err := validate(&in)
	if err != nil {
		return nil, err
	}

	ok, err := d.friends.AreFriends(ctx, in.From, in.To)
	if err != nil {
		d.log.Error("friendship check failed", zap.String("from", in.From), zap.String("to", in.To), zap.Error(err))
		return nil, domain.Internal("check friendship", err)
	}
	if !ok {
		return nil, domain.NotFriends("you can only message your friends")
	}

	if err := d.checkTier(ctx, in.From, text != nil, in.FileRef != nil); err != nil {
		return nil, err
	}

	low, high := domain.CanonicalPair(in.From, in.To)
	var scan moderation.Outcome
	if text != nil {
		scan, err = d.scanner.Scan(ctx, *text, low, high)
		if err != nil {
			// Fail open: the message goes through unflagged.
			var scanErr *moderation.ScanError
			if errors.As(err, &scanErr) {
				d.log.Warn("moderation scan failed, message not flagged",
					zap.String("op", scanErr.Op), zap.String("from", in.From), zap.String("to", in.To), zap.Error(err))
			} else {
				d.log.Error("unexpected moderation error, message not flagged",
					zap.String("from", in.From), zap.String("to", in.To), zap.Error(err))
			}
			metrics.ModerationFailOpen.Inc()
			scan = moderation.Outcome{}
		}
	}

	// Once the store is reached the message is committed to, whatever the
	// client does with its connection.
	ctx = context.WithoutCancel(ctx)

	msg := &domain.Message{
		From:    in.From,
		To:      in.To,
		Text:    text,
		FileRef: in.FileRef,
		Flagged: scan.Flagged,
	}
	if err := d.messages.Append(ctx, msg); err != nil {
		d.log.Error("store message failed", zap.String("from", in.From), zap.String("to", in.To), zap.Error(err))
		return nil, domain.Internal("store message", err)
	}

	if scan.Flagged {
		metrics.FlaggedTotal.Inc()
		flag := &domain.FlaggedConversation{
			PairLow:        low,
			PairHigh:       high,
			MatchedWord:    scan.Word,
			MessageID:      msg.ID,
			MessageText:    *text,
			ContextSnippet: scan.Context,
		}
		if err := d.flags.Create(ctx, flag); err != nil {
			d.log.Error("store moderation record failed",
				zap.Int64("message_id", msg.ID), zap.String("word", scan.Word), zap.Error(err))
		}
	}

	d.deliver.Deliver(ctx, in.To, protocol.NewIncoming(msg))

	return &DispatchResult{MessageID: msg.ID, Flagged: msg.Flagged, CreatedAt: msg.CreatedAt}, nil
}

// checkTier applies the free-tier rules: attachments need a subscription and
// text counts against the daily allowance.
func (d *Dispatcher) checkTier(ctx context.Context, identity string, hasText, hasFile bool) error {
	paid, err := d.subs.IsPaidTier(ctx, identity)
	if err != nil {
		d.log.Error("subscription lookup failed", zap.String("identity", identity), zap.Error(err))
		return domain.Internal("check subscription", err)
	}
	if paid {
		return nil
	}
	if hasFile {
		return domain.PaidFeature("file sharing requires a subscription")
	}
	if !hasText {
		return nil
	}
	used, err := d.quota.FreeTierUsageToday(ctx, identity)
	if err != nil {
		d.log.Error("quota lookup failed", zap.String("identity", identity), zap.Error(err))
		return domain.Internal("check quota", err)
	}
	if used >= FreeDailyMessageLimit {
		return domain.QuotaExceeded("daily free message limit reached, upgrade for unlimited messages")
	}
	return nil
}

// validate checks the input shape and returns the text to store, which is nil
// for attachment-only messages.
func validate(in *DispatchInput) (*string, error) {
	if strings.TrimSpace(in.To) == "" {
		return nil, domain.InvalidText("recipient is required")
	}
	if in.FileRef != nil && *in.FileRef == "" {
		in.FileRef = nil
	}
	text := in.Text
	if text != nil && strings.TrimSpace(*text) == "" {
		if in.FileRef == nil {
			return nil, domain.InvalidText("message text is empty")
		}
		text = nil
	}
	if text == nil && in.FileRef == nil {
		return nil, domain.InvalidText("message needs text or a file")
	}
	if text != nil && utf8.RuneCountInString(*text) > MaxTextLength {
		return nil, domain.InvalidText("message text exceeds 5000 characters")
	}
	return text, nil
}

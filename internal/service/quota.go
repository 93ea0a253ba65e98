package service

import (
	"context"
	"time"
)

// SentCounter counts messages sent by an identity in a time window.
type SentCounter interface {
	CountSentBetween(ctx context.Context, from string, start, end time.Time) (int, error)
}

// QuotaTracker derives daily free-tier usage from stored messages. Nothing is
// persisted; the count resets at 00:00 UTC.
type QuotaTracker struct {
	messages SentCounter
	now      func() time.Time
}

// NewQuotaTracker returns a tracker; a nil now uses time.Now.
func NewQuotaTracker(messages SentCounter, now func() time.Time) *QuotaTracker {
	if now == nil {
		now = time.Now
	}
	return &QuotaTracker{messages: messages, now: now}
}

func (q *QuotaTracker) FreeTierUsageToday(ctx context.Context, identity string) (int, error) {
	start, end := DayBounds(q.now())
	return q.messages.CountSentBetween(ctx, identity, start, end)
}

// DayBounds returns the UTC calendar day containing t as [start, end).
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

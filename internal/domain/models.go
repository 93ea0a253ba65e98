package domain

import "time"

// Friendship is a mutual relationship between two identities, stored with the
// lexicographically smaller identity as Low.
type Friendship struct {
	Low       string    `db:"low_identity" json:"low"`
	High      string    `db:"high_identity" json:"high"`
	LowAlias  *string   `db:"low_alias" json:"low_alias,omitempty"`
	HighAlias *string   `db:"high_alias" json:"high_alias,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Peer returns the other side of the friendship as seen by identity.
func (f *Friendship) Peer(identity string) string {
	if f.Low == identity {
		return f.High
	}
	return f.Low
}

// Message is a single one-to-one message. Text and FileRef are never both nil.
type Message struct {
	ID        int64      `db:"id" json:"id"`
	From      string     `db:"from_identity" json:"from"`
	To        string     `db:"to_identity" json:"to"`
	Text      *string    `db:"text" json:"text,omitempty"`
	FileRef   *string    `db:"file_ref" json:"file_ref,omitempty"`
	Flagged   bool       `db:"flagged" json:"flagged"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// CriticalWord is an operator-managed prohibited term, stored lower-cased.
type CriticalWord struct {
	Word string `db:"word" json:"word"`
}

// FlaggedConversation is a moderation record created when a message matches a
// critical word.
type FlaggedConversation struct {
	ID             int64     `db:"id" json:"id"`
	PairLow        string    `db:"pair_low" json:"pair_low"`
	PairHigh       string    `db:"pair_high" json:"pair_high"`
	MatchedWord    string    `db:"matched_word" json:"matched_word"`
	MessageID      int64     `db:"message_id" json:"message_id"`
	MessageText    string    `db:"message_text" json:"message_text"`
	ContextSnippet string    `db:"context_snippet" json:"context_snippet"`
	FlaggedAt      time.Time `db:"flagged_at" json:"flagged_at"`
	Reviewed       bool      `db:"reviewed" json:"reviewed"`
}

// TempFile is an ephemeral attachment readable once by its recipient.
type TempFile struct {
	ID          string    `db:"id" json:"id"`
	From        string    `db:"from_identity" json:"from"`
	To          string    `db:"to_identity" json:"to"`
	Name        string    `db:"name" json:"name"`
	Size        int64     `db:"size" json:"size"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	BlobLocator string    `db:"blob_locator" json:"-"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	Downloaded  bool      `db:"downloaded" json:"downloaded"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the file is past its expiry at now.
func (f *TempFile) Expired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// Subscription records the paid tier of an identity.
type Subscription struct {
	Identity  string    `db:"identity" json:"identity"`
	Tier      string    `db:"tier" json:"tier"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"relaychat/internal/domain"
)

type CriticalWordRepo struct {
	db *sql.DB
}

func NewCriticalWordRepo(db *sql.DB) *CriticalWordRepo {
	return &CriticalWordRepo{db: db}
}

var _ domain.CriticalWordRepository = (*CriticalWordRepo)(nil)

func (r *CriticalWordRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT word FROM critical_words ORDER BY word ASC`)
	if err != nil {
		return nil, fmt.Errorf("list critical words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan critical word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// Add inserts a word, lower-cased. Existing words are left alone.
func (r *CriticalWordRepo) Add(ctx context.Context, word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return fmt.Errorf("add critical word: empty word")
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO critical_words (word) VALUES (?) ON CONFLICT (word) DO NOTHING`, word); err != nil {
		return fmt.Errorf("add critical word: %w", err)
	}
	return nil
}

type FlaggedConversationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewFlaggedConversationRepo(db *sql.DB) *FlaggedConversationRepo {
	return &FlaggedConversationRepo{db: db, now: time.Now}
}

var _ domain.FlaggedConversationRepository = (*FlaggedConversationRepo)(nil)

func (r *FlaggedConversationRepo) Create(ctx context.Context, f *domain.FlaggedConversation) error {
	if f.FlaggedAt.IsZero() {
		f.FlaggedAt = r.now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO flagged_conversations
			(pair_low, pair_high, matched_word, message_id, message_text, context_snippet, flagged_at, reviewed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.PairLow, f.PairHigh, f.MatchedWord, f.MessageID, f.MessageText, f.ContextSnippet,
		toNanos(f.FlaggedAt), f.Reviewed)
	if err != nil {
		return fmt.Errorf("insert flagged conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return nil
}

func (r *FlaggedConversationRepo) ListUnreviewed(ctx context.Context, limit int) ([]*domain.FlaggedConversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pair_low, pair_high, matched_word, message_id, message_text, context_snippet, flagged_at, reviewed
		FROM flagged_conversations
		WHERE reviewed = 0
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list flagged conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.FlaggedConversation
	for rows.Next() {
		f := &domain.FlaggedConversation{}
		var flaggedAt int64
		if err := rows.Scan(&f.ID, &f.PairLow, &f.PairHigh, &f.MatchedWord, &f.MessageID,
			&f.MessageText, &f.ContextSnippet, &flaggedAt, &f.Reviewed); err != nil {
			return nil, fmt.Errorf("scan flagged conversation: %w", err)
		}
		f.FlaggedAt = fromNanos(flaggedAt)
		res = append(res, f)
	}
	return res, rows.Err()
}

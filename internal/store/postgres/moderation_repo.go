package postgres

import (
	"context"
	"database/sql"
	"fmt"

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

type FlaggedConversationRepo struct {
	db *sql.DB
}

func NewFlaggedConversationRepo(db *sql.DB) *FlaggedConversationRepo {
	return &FlaggedConversationRepo{db: db}
}

var _ domain.FlaggedConversationRepository = (*FlaggedConversationRepo)(nil)

func (r *FlaggedConversationRepo) Create(ctx context.Context, f *domain.FlaggedConversation) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO flagged_conversations
			(pair_low, pair_high, matched_word, message_id, message_text, context_snippet, reviewed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, flagged_at
	`, f.PairLow, f.PairHigh, f.MatchedWord, f.MessageID, f.MessageText, f.ContextSnippet, f.Reviewed).
		Scan(&f.ID, &f.FlaggedAt)
	if err != nil {
		return fmt.Errorf("insert flagged conversation: %w", err)
	}
	return nil
}

func (r *FlaggedConversationRepo) ListUnreviewed(ctx context.Context, limit int) ([]*domain.FlaggedConversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pair_low, pair_high, matched_word, message_id, message_text, context_snippet, flagged_at, reviewed
		FROM flagged_conversations
		WHERE reviewed = FALSE
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list flagged conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.FlaggedConversation
	for rows.Next() {
		f := &domain.FlaggedConversation{}
		if err := rows.Scan(&f.ID, &f.PairLow, &f.PairHigh, &f.MatchedWord, &f.MessageID,
			&f.MessageText, &f.ContextSnippet, &f.FlaggedAt, &f.Reviewed); err != nil {
			return nil, fmt.Errorf("scan flagged conversation: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

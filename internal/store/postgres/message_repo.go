package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (from_identity, to_identity, text, file_ref, flagged)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.From, m.To, m.Text, m.FileRef, m.Flagged).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, recipient, sender string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE to_identity = $1 AND from_identity = $2 AND read_at IS NULL
	`, recipient, sender)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *MessageRepo) History(ctx context.Context, a, b string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_identity, to_identity, text, file_ref, flagged, created_at, read_at
		FROM messages
		WHERE (from_identity = $1 AND to_identity = $2) OR (from_identity = $2 AND to_identity = $1)
		ORDER BY id DESC
		LIMIT $3
	`, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) CountSentBetween(ctx context.Context, from string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE from_identity = $1 AND created_at >= $2 AND created_at < $3
	`, from, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent messages: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.From,
			&m.To,
			&m.Text,
			&m.FileRef,
			&m.Flagged,
			&m.CreatedAt,
			&m.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return res, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

type MessageRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db, now: time.Now}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	createdAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (from_identity, to_identity, text, file_ref, flagged, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.From, m.To, m.Text, m.FileRef, m.Flagged, toNanos(createdAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = createdAt
	return nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, recipient, sender string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = ?
		WHERE to_identity = ? AND from_identity = ? AND read_at IS NULL
	`, toNanos(r.now()), recipient, sender)
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
		WHERE (from_identity = ? AND to_identity = ?) OR (from_identity = ? AND to_identity = ?)
		ORDER BY id DESC
		LIMIT ?
	`, a, b, b, a, limit)
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
		WHERE from_identity = ? AND created_at >= ? AND created_at < ?
	`, from, toNanos(start), toNanos(end)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent messages: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		var created int64
		var readAt sql.NullInt64
		if err := rows.Scan(
			&m.ID,
			&m.From,
			&m.To,
			&m.Text,
			&m.FileRef,
			&m.Flagged,
			&created,
			&readAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromNanos(created)
		m.ReadAt = nullableTime(readAt)
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return res, nil
}

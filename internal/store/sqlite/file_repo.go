package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"relaychat/internal/domain"
)

type TempFileRepo struct {
	db *sql.DB
}

func NewTempFileRepo(db *sql.DB) *TempFileRepo {
	return &TempFileRepo{db: db}
}

var _ domain.TempFileRepository = (*TempFileRepo)(nil)

func (r *TempFileRepo) Create(ctx context.Context, f *domain.TempFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO temp_files
			(id, from_identity, to_identity, name, size, mime_type, blob_locator, expires_at, downloaded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.From, f.To, f.Name, f.Size, f.MimeType, f.BlobLocator,
		toNanos(f.ExpiresAt), f.Downloaded, toNanos(f.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert temp file: %w", err)
	}
	return nil
}

func (r *TempFileRepo) GetByID(ctx context.Context, id string) (*domain.TempFile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, from_identity, to_identity, name, size, mime_type, blob_locator, expires_at, downloaded, created_at
		FROM temp_files WHERE id = ?
	`, id)
	f, err := scanTempFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *TempFileRepo) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE temp_files SET downloaded = 1 WHERE id = ? AND downloaded = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim temp file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *TempFileRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM temp_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete temp file: %w", err)
	}
	return nil
}

func (r *TempFileRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.TempFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_identity, to_identity, name, size, mime_type, blob_locator, expires_at, downloaded, created_at
		FROM temp_files
		WHERE expires_at <= ?
		ORDER BY expires_at ASC
		LIMIT ?
	`, toNanos(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired temp files: %w", err)
	}
	defer rows.Close()

	var res []*domain.TempFile
	for rows.Next() {
		f, err := scanTempFile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTempFile(s rowScanner) (*domain.TempFile, error) {
	f := &domain.TempFile{}
	var expires, created int64
	if err := s.Scan(&f.ID, &f.From, &f.To, &f.Name, &f.Size, &f.MimeType, &f.BlobLocator,
		&expires, &f.Downloaded, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan temp file: %w", err)
	}
	f.ExpiresAt = fromNanos(expires)
	f.CreatedAt = fromNanos(created)
	return f, nil
}

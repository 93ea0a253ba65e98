package postgres

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

const tempFileColumns = `id, from_identity, to_identity, name, size, mime_type, blob_locator, expires_at, downloaded, created_at`

func (r *TempFileRepo) Create(ctx context.Context, f *domain.TempFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO temp_files (`+tempFileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, f.ID, f.From, f.To, f.Name, f.Size, f.MimeType, f.BlobLocator, f.ExpiresAt, f.Downloaded, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert temp file: %w", err)
	}
	return nil
}

func (r *TempFileRepo) GetByID(ctx context.Context, id string) (*domain.TempFile, error) {
	f := &domain.TempFile{}
	err := r.db.QueryRowContext(ctx, `SELECT `+tempFileColumns+` FROM temp_files WHERE id = $1`, id).
		Scan(&f.ID, &f.From, &f.To, &f.Name, &f.Size, &f.MimeType, &f.BlobLocator, &f.ExpiresAt, &f.Downloaded, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get temp file: %w", err)
	}
	return f, nil
}

func (r *TempFileRepo) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE temp_files SET downloaded = TRUE WHERE id = $1 AND downloaded = FALSE`, id)
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
	if _, err := r.db.ExecContext(ctx, `DELETE FROM temp_files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete temp file: %w", err)
	}
	return nil
}

func (r *TempFileRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.TempFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tempFileColumns+`
		FROM temp_files
		WHERE expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired temp files: %w", err)
	}
	defer rows.Close()

	var res []*domain.TempFile
	for rows.Next() {
		f := &domain.TempFile{}
		if err := rows.Scan(&f.ID, &f.From, &f.To, &f.Name, &f.Size, &f.MimeType, &f.BlobLocator,
			&f.ExpiresAt, &f.Downloaded, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan temp file: %w", err)
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

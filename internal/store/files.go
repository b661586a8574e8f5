package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmunix/plexorg/internal/media"
)

// FileRecord is a completed file plus bookkeeping timestamps.
type FileRecord struct {
	media.CompletedFile
	SeenAt      time.Time
	OrganizedAt time.Time // zero until organized
}

// FileFilter selects completed files.
type FileFilter struct {
	Unorganized bool
	Limit       int
}

// RecordFile upserts a completed file. SeenAt is set on first insert only.
func (s *Store) RecordFile(ctx context.Context, f media.CompletedFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completed_files (path, name, size, kind, quality, download_id, modified_at, seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			kind = excluded.kind,
			quality = excluded.quality,
			download_id = excluded.download_id,
			modified_at = excluded.modified_at`,
		f.Path, f.Name, f.Size, string(f.Kind), f.Quality, f.DownloadID,
		nullableTime(f.ModifiedAt), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record file: %w", err)
	}
	return nil
}

// MarkOrganized stamps a file as organized.
func (s *Store) MarkOrganized(ctx context.Context, path string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE completed_files SET organized_at = ? WHERE path = ?`, at.UTC(), path)
	if err != nil {
		return fmt.Errorf("mark organized: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark organized: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	return nil
}

// GetFile returns one file by path.
func (s *Store) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, selectFiles+` WHERE path = ?`, path)
	r, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	return r, err
}

// ListFiles returns files newest first.
func (s *Store) ListFiles(ctx context.Context, f FileFilter) ([]*FileRecord, error) {
	query := selectFiles
	if f.Unorganized {
		query += ` WHERE organized_at IS NULL`
	}
	query += ` ORDER BY seen_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FileRecord
	for rows.Next() {
		r, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

const selectFiles = `
	SELECT path, name, size, kind, quality, download_id, modified_at, seen_at, organized_at
	FROM completed_files`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*FileRecord, error) {
	var (
		r         FileRecord
		kind      string
		modified  sql.NullTime
		organized sql.NullTime
	)
	if err := row.Scan(&r.Path, &r.Name, &r.Size, &kind, &r.Quality, &r.DownloadID,
		&modified, &r.SeenAt, &organized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	r.Kind = media.Kind(kind)
	r.ModifiedAt = timeOrZero(modified)
	r.OrganizedAt = timeOrZero(organized)
	r.PlexCompatible = media.IsPlexCompatible(r.Path)
	return &r, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vmunix/plexorg/internal/conversion"
)

// ArchiveTask stores a conversion task snapshot. Re-archiving the same ID
// overwrites the earlier row.
func (s *Store) ArchiveTask(ctx context.Context, t conversion.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversion_tasks (
			id, input_path, output_path, status, progress, crf, audio_bitrate, preset,
			error, cancelled, queued_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.InputPath, t.OutputPath, string(t.Status), t.Progress,
		t.Options.CRF, t.Options.AudioBitrate, t.Options.Preset,
		t.Error, t.Cancelled, t.QueuedAt.UTC(), nullableTime(t.StartedAt), nullableTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("archive task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask returns one archived task.
func (s *Store) GetTask(ctx context.Context, id string) (conversion.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectTasks+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return conversion.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTasks returns archived tasks, most recently queued first.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]conversion.Task, error) {
	query := selectTasks + ` ORDER BY queued_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []conversion.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

const selectTasks = `
	SELECT id, input_path, output_path, status, progress, crf, audio_bitrate, preset,
		error, cancelled, queued_at, started_at, completed_at
	FROM conversion_tasks`

func scanTask(row scanner) (conversion.Task, error) {
	var (
		t                  conversion.Task
		status             string
		started, completed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.InputPath, &t.OutputPath, &status, &t.Progress,
		&t.Options.CRF, &t.Options.AudioBitrate, &t.Options.Preset,
		&t.Error, &t.Cancelled, &t.QueuedAt, &started, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan task: %w", err)
	}
	t.Status = conversion.Status(status)
	t.StartedAt = timeOrZero(started)
	t.CompletedAt = timeOrZero(completed)
	return t, nil
}

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HistoryEntry is one recorded organize result.
type HistoryEntry struct {
	ID          int64
	BatchID     string
	File        string
	LibraryPath string
	Action      string
	Success     bool
	Error       string
	Note        string
	TaskID      string
	CreatedAt   time.Time
}

// HistoryFilter specifies criteria for listing history.
type HistoryFilter struct {
	File    string
	BatchID string
	Action  string
	Failed  bool // only unsuccessful results
	Limit   int
}

// AddHistory inserts an entry, filling ID and CreatedAt.
func (s *Store) AddHistory(ctx context.Context, h *HistoryEntry) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO organize_history (batch_id, file, library_path, action, success, error, note, task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.BatchID, h.File, h.LibraryPath, h.Action, h.Success, h.Error, h.Note, h.TaskID, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListHistory returns entries matching the filter, most recent first.
func (s *Store) ListHistory(ctx context.Context, f HistoryFilter) ([]*HistoryEntry, error) {
	var conditions []string
	var args []any

	if f.File != "" {
		conditions = append(conditions, "file = ?")
		args = append(args, f.File)
	}
	if f.BatchID != "" {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if f.Failed {
		conditions = append(conditions, "success = 0")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT id, batch_id, file, library_path, action, success, error, note, task_id, created_at
		FROM organize_history ` + whereClause + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*HistoryEntry
	for rows.Next() {
		h := &HistoryEntry{}
		if err := rows.Scan(&h.ID, &h.BatchID, &h.File, &h.LibraryPath, &h.Action, &h.Success,
			&h.Error, &h.Note, &h.TaskID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return results, nil
}

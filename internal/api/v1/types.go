package v1

import (
	"time"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/store"
)

// TaskResponse is the API representation of a conversion task.
type TaskResponse struct {
	ID          string             `json:"id"`
	InputPath   string             `json:"input_path"`
	OutputPath  string             `json:"output_path"`
	Status      string             `json:"status"`
	Progress    float64            `json:"progress"` // 0.0 - 1.0
	Timemark    string             `json:"timemark,omitempty"`
	Options     conversion.Options `json:"options"`
	QueuedAt    time.Time          `json:"queued_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Error       string             `json:"error,omitempty"`
	Cancelled   bool               `json:"cancelled,omitempty"`
	Archived    bool               `json:"archived,omitempty"`
}

// ListTasksResponse is the response for GET /tasks.
type ListTasksResponse struct {
	Items []TaskResponse `json:"items"`
	Stats StatsResponse  `json:"stats"`
}

// StatsResponse summarizes the engine.
type StatsResponse struct {
	Pending       int `json:"pending"`
	Processing    int `json:"processing"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	MaxConcurrent int `json:"max_concurrent"`
}

// OrganizeRequest is the body of POST /organize.
type OrganizeRequest struct {
	Paths []string `json:"paths"`
}

// OrganizeResponse is the response for POST /organize.
type OrganizeResponse struct {
	Results []organizer.Result `json:"results"`
	Summary organizer.Summary  `json:"summary"`
}

// ConcurrencyRequest is the body of PUT /tasks/concurrency.
type ConcurrencyRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
}

// HistoryResponse is one organize history entry.
type HistoryResponse struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	File        string    `json:"file"`
	LibraryPath string    `json:"library_path,omitempty"`
	Action      string    `json:"action"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Note        string    `json:"note,omitempty"`
	TaskID      string    `json:"task_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventResponse is one persisted event.
type EventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data,omitempty"`
}

// ListEventsResponse is the response for GET /events.
type ListEventsResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

// SectionResponse is a Plex library section.
type SectionResponse struct {
	Key       string   `json:"key"`
	Title     string   `json:"title"`
	Type      string   `json:"type"`
	Locations []string `json:"locations"`
}

// PlexStatusResponse is the response for GET /plex.
type PlexStatusResponse struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Sections []SectionResponse `json:"sections"`
}

func taskToResponse(t conversion.Task) TaskResponse {
	resp := TaskResponse{
		ID:         t.ID,
		InputPath:  t.InputPath,
		OutputPath: t.OutputPath,
		Status:     string(t.Status),
		Progress:   t.Progress,
		Timemark:   t.Timemark,
		Options:    t.Options,
		QueuedAt:   t.QueuedAt,
		Error:      t.Error,
		Cancelled:  t.Cancelled,
	}
	if !t.StartedAt.IsZero() {
		resp.StartedAt = &t.StartedAt
	}
	if !t.CompletedAt.IsZero() {
		resp.CompletedAt = &t.CompletedAt
	}
	return resp
}

func historyToResponse(h *store.HistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:          h.ID,
		BatchID:     h.BatchID,
		File:        h.File,
		LibraryPath: h.LibraryPath,
		Action:      h.Action,
		Success:     h.Success,
		Error:       h.Error,
		Note:        h.Note,
		TaskID:      h.TaskID,
		CreatedAt:   h.CreatedAt,
	}
}

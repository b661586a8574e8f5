package events

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_events_type ON events(event_type);
		CREATE INDEX idx_events_entity ON events(entity_type, entity_id);
		CREATE INDEX idx_events_occurred ON events(occurred_at);
	`)
	require.NoError(t, err)
	return db
}

func TestEventLog_Append(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	e := &testEvent{
		BaseEvent: NewBaseEvent("test.created", "test", "1"),
		Message:   "hello",
	}

	id, err := log.Append(ctx, e)
	require.NoError(t, err)
	assert.Positive(t, id)

	// Verify payload is stored correctly
	events, err := log.ForEntity(ctx, "test", "1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Payload, `"message":"hello"`)
	assert.Equal(t, "test.created", events[0].EventType)
	assert.Equal(t, "test", events[0].EntityType)
	assert.Equal(t, "1", events[0].EntityID)
}

func TestEventLog_Since(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)

	// Add events
	e1 := &testEvent{BaseEvent: NewBaseEvent("test.first", "test", "1"), Message: "first"}
	e2 := &testEvent{BaseEvent: NewBaseEvent("test.second", "test", "2"), Message: "second"}

	_, err := log.Append(ctx, e1)
	require.NoError(t, err)
	_, err = log.Append(ctx, e2)
	require.NoError(t, err)

	// Query
	events, err := log.Since(ctx, start)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Verify order (by id ascending)
	assert.Equal(t, "test.first", events[0].EventType)
	assert.Equal(t, "test.second", events[1].EventType)
}

func TestEventLog_ForEntity(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	// Add events for different entities
	e1 := &testEvent{BaseEvent: NewBaseEvent("test.one", "file", "1"), Message: "one"}
	e2 := &testEvent{BaseEvent: NewBaseEvent("test.two", "file", "2"), Message: "two"}
	e3 := &testEvent{BaseEvent: NewBaseEvent("test.three", "file", "1"), Message: "three"}

	_, err := log.Append(ctx, e1)
	require.NoError(t, err)
	_, err = log.Append(ctx, e2)
	require.NoError(t, err)
	_, err = log.Append(ctx, e3)
	require.NoError(t, err)

	// Query for entity 1
	events, err := log.ForEntity(ctx, "file", "1")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Verify correct events returned (order by id)
	assert.Equal(t, "test.one", events[0].EventType)
	assert.Equal(t, "test.three", events[1].EventType)

	// Verify entity 2 only has one event
	events2, err := log.ForEntity(ctx, "file", "2")
	require.NoError(t, err)
	assert.Len(t, events2, 1)
	assert.Equal(t, "test.two", events2[0].EventType)
}

func TestEventLog_Prune(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	// Insert an event with a manually backdated occurred_at
	_, err := db.Exec(`
		INSERT INTO events (event_type, entity_type, entity_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		"test.old", "test", "1", `{"message":"old"}`, time.Now().Add(-100*24*time.Hour),
	)
	require.NoError(t, err)

	// Insert a recent event
	e := &testEvent{BaseEvent: NewBaseEvent("test.new", "test", "2"), Message: "new"}
	_, err = log.Append(ctx, e)
	require.NoError(t, err)

	// Prune events older than 90 days
	count, err := log.Prune(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Verify only the new event remains
	events, err := log.Since(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, "test.new", events[0].EventType)
}

func TestEventLog_Recent(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	// Insert 5 events
	for i := 0; i < 5; i++ {
		evt := &FileCompleted{
			BaseEvent: NewBaseEvent(EventFileCompleted, EntityFile, fmt.Sprintf("/dl/%d.mkv", i+1)),
			Path:      fmt.Sprintf("/dl/%d.mkv", i+1),
		}
		_, err := log.Append(ctx, evt)
		require.NoError(t, err)
	}

	// Get last 3
	events, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	// Should be in reverse chronological order (newest first)
	assert.Equal(t, "/dl/5.mkv", events[0].EntityID)
	assert.Equal(t, "/dl/4.mkv", events[1].EntityID)
	assert.Equal(t, "/dl/3.mkv", events[2].EntityID)
}

// testEvent is a concrete event type for testing
type testEvent struct {
	BaseEvent
	Message string `json:"message"`
}

package conversion

import (
	"errors"
	"time"

	"github.com/vmunix/plexorg/internal/events"
)

// EventType identifies a task lifecycle event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is delivered on a task's own channel.
type Event struct {
	Type       EventType
	TaskID     string
	InputPath  string
	OutputPath string
	Percent    float64 // progress events only
	Timemark   string  // progress events only
	Err        error   // failed events only
	At         time.Time
}

// busEvent converts a task event for the global bus.
func busEvent(ev Event) events.Event {
	base := events.BaseEvent{ID: ev.TaskID, Entity: events.EntityTask, Timestamp: ev.At}
	switch ev.Type {
	case EventQueued:
		base.Type = events.EventConversionQueued
		return &events.ConversionQueued{BaseEvent: base, InputPath: ev.InputPath, OutputPath: ev.OutputPath}
	case EventStarted:
		base.Type = events.EventConversionStarted
		return &events.ConversionStarted{BaseEvent: base, InputPath: ev.InputPath}
	case EventProgress:
		base.Type = events.EventConversionProgress
		return &events.ConversionProgressed{BaseEvent: base, Percent: ev.Percent, Timemark: ev.Timemark}
	case EventCompleted:
		base.Type = events.EventConversionCompleted
		return &events.ConversionCompleted{BaseEvent: base, InputPath: ev.InputPath, OutputPath: ev.OutputPath}
	default:
		base.Type = events.EventConversionFailed
		reason := ""
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		return &events.ConversionFailed{
			BaseEvent: base,
			InputPath: ev.InputPath,
			Reason:    reason,
			Cancelled: errors.Is(ev.Err, ErrCancelled),
		}
	}
}

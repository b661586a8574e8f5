package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
)

const streamBuffer = 64

// streamTask sends a task's events as server-sent events until the task
// finishes or the client goes away. A task that is already finished gets a
// single "task" message with its final state.
func (s *Server) streamTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_BUS", "Event streaming not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "NO_STREAMING", "Response writer cannot stream")
		return
	}
	id := r.PathValue("id")

	// Subscribe before the lookup so no terminal event slips between them.
	evs, cancel := s.deps.Bus.SubscribeEntity(events.EntityTask, id, streamBuffer)
	defer cancel()

	t, err := s.deps.Conversions.Get(id)
	if errors.Is(err, conversion.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "task", taskToResponse(t)); err != nil {
		return
	}
	flusher.Flush()
	if t.Status.IsTerminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-evs:
			if !ok {
				return
			}
			if err := writeSSE(w, e.EventType(), e); err != nil {
				return
			}
			flusher.Flush()
			switch e.EventType() {
			case events.EventConversionCompleted, events.EventConversionFailed:
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

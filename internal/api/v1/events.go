package v1

import (
	"net/http"
	"time"

	"github.com/vmunix/plexorg/internal/events"
)

const maxEventLimit = 1000

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be non-negative")
		return
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
		return
	}

	var (
		evs []events.RawEvent
		err error
	)
	if since := r.URL.Query().Get("since"); since != "" {
		t, perr := time.Parse(time.RFC3339, since)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be RFC3339")
			return
		}
		evs, err = s.deps.EventLog.Since(r.Context(), t.Local())
		if err == nil && len(evs) > limit {
			evs = evs[len(evs)-limit:]
		}
	} else {
		evs, err = s.deps.EventLog.Recent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.toEventsResponse(evs))
}

func (s *Server) listTaskEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
		return
	}

	evs, err := s.deps.EventLog.ForEntity(r.Context(), events.EntityTask, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}
	if len(evs) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No events for task")
		return
	}
	writeJSON(w, http.StatusOK, s.toEventsResponse(evs))
}

// toEventsResponse decodes each payload into its concrete event type. Types
// the registry does not know are listed without data.
func (s *Server) toEventsResponse(evs []events.RawEvent) ListEventsResponse {
	resp := ListEventsResponse{
		Items: make([]EventResponse, len(evs)),
		Total: len(evs),
	}
	for i, e := range evs {
		resp.Items[i] = EventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		}
		if data, err := s.registry.Unmarshal(e); err == nil {
			resp.Items[i].Data = data
		}
	}
	return resp
}

// Package v1 implements the native REST API.
package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/store"
)

// maxOrganizeBody caps POST /organize request bodies.
const maxOrganizeBody = 1 << 20

// Server is the v1 API server.
type Server struct {
	deps     ServerDeps
	registry *events.Registry
}

// New creates a new v1 API server.
func New(deps ServerDeps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, errors.Join(ErrMissingDependency, err)
	}
	return &Server{deps: deps, registry: events.DefaultRegistry()}, nil
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.healthz)

	// Conversions
	mux.HandleFunc("GET /api/v1/tasks", s.listTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.getTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.cancelTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/events", s.listTaskEvents)
	mux.HandleFunc("GET /api/v1/tasks/{id}/stream", s.streamTask)
	mux.HandleFunc("PUT /api/v1/concurrency", s.setConcurrency)

	// Organize
	mux.HandleFunc("POST /api/v1/organize", s.organize)
	mux.HandleFunc("GET /api/v1/history", s.listHistory)
	mux.HandleFunc("GET /api/v1/analyze", s.requireAnalyzer(s.analyze))

	// System
	mux.HandleFunc("GET /api/v1/events", s.listEvents)
	mux.HandleFunc("GET /api/v1/plex", s.requirePlex(s.plexStatus))
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.deps.Conversions.List()
	resp := ListTasksResponse{Items: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Items = append(resp.Items, taskToResponse(t))
	}

	if r.URL.Query().Get("archived") == "true" {
		archived, err := s.deps.Store.ListTasks(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
			return
		}
		for _, t := range archived {
			tr := taskToResponse(t)
			tr.Archived = true
			resp.Items = append(resp.Items, tr)
		}
	}

	st := s.deps.Conversions.Stats()
	resp.Stats = StatsResponse{
		Pending:       st.Pending,
		Processing:    st.Processing,
		Completed:     st.Completed,
		Failed:        st.Failed,
		MaxConcurrent: st.MaxConcurrent,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	t, err := s.deps.Conversions.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, taskToResponse(t))
		return
	}
	if !errors.Is(err, conversion.ErrTaskNotFound) {
		writeError(w, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
		return
	}

	// Finished tasks may already be archived.
	t, err = s.deps.Store.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	resp := taskToResponse(t)
	resp.Archived = true
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Conversions.Cancel(r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, conversion.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Task not found")
	case errors.Is(err, conversion.ErrTaskFinished):
		writeError(w, http.StatusConflict, "TASK_FINISHED", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
	}
}

func (s *Server) setConcurrency(w http.ResponseWriter, r *http.Request) {
	var req ConcurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if err := s.deps.Conversions.SetMaxConcurrent(req.MaxConcurrent); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONCURRENCY", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) organize(w http.ResponseWriter, r *http.Request) {
	var req OrganizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrganizeBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "NO_PATHS", "paths is required")
		return
	}

	files := make([]media.CompletedFile, 0, len(req.Paths))
	for _, p := range req.Paths {
		f, err := media.Describe(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_PATH", err.Error())
			return
		}
		files = append(files, f)
	}

	results, err := s.deps.Organizer.Organize(r.Context(), files, s.deps.Config())
	if err != nil {
		var ce *organizer.ConfigurationError
		if errors.As(err, &ce) {
			writeError(w, http.StatusUnprocessableEntity, "CONFIGURATION_ERROR", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "ORGANIZE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OrganizeResponse{Results: results, Summary: organizer.Summarize(results)})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := s.deps.Store.ListHistory(r.Context(), store.HistoryFilter{
		File:    q.Get("file"),
		BatchID: q.Get("batch"),
		Action:  q.Get("action"),
		Failed:  q.Get("failed") == "true",
		Limit:   queryInt(r, "limit", 100),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	resp := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		resp = append(resp, historyToResponse(h))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "NO_PATH", "path is required")
		return
	}
	a, err := s.deps.Analyzer.Analyze(r.Context(), path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "ANALYSIS_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) plexStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.deps.Plex.Identity(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "PLEX_ERROR", err.Error())
		return
	}
	sections, err := s.deps.Plex.Sections(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "PLEX_ERROR", err.Error())
		return
	}

	resp := PlexStatusResponse{Name: id.Name, Version: id.Version, Sections: make([]SectionResponse, 0, len(sections))}
	for _, sec := range sections {
		sr := SectionResponse{Key: sec.Key, Title: sec.Title, Type: sec.Type}
		for _, loc := range sec.Locations {
			sr.Locations = append(sr.Locations, loc.Path)
		}
		resp.Sections = append(resp.Sections, sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

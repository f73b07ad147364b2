package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/docservice"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// requirePath reads the path query parameter or answers 400.
func requirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return "", false
	}
	return path, true
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, total, err := h.svc.ListDocuments(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: total})
}

// DeleteDocument handles DELETE /api/documents?path=.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteDocument(r.Context(), path); err != nil {
		writeError(w, "delete document", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Outline handles GET /api/outline?path=.
//
//	@Summary		Get the section tree of a document
//	@Tags			outline
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	models.OutlineView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	view, err := h.svc.Outline(r.Context(), path)
	if err != nil {
		writeError(w, "outline", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Section handles GET /api/section?path=&line= and GET /api/section?path=&id=.
//
//	@Summary		Find a section by line or by id
//	@Tags			outline
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Param			line	query		int		false	"1-based line; the deepest enclosing section is returned"
//	@Param			id		query		string	false	"Section path id, e.g. projects/launch"
//	@Success		200		{object}	models.SectionView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/section [get]
func (h *Handler) Section(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		sec, err := h.svc.SectionByID(r.Context(), path, id)
		if err != nil {
			writeError(w, "section by id", err, slog.String("path", path))
			return
		}
		writeJSON(w, http.StatusOK, sec)
		return
	}
	line, err := strconv.Atoi(q.Get("line"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'line' or 'id' is required"))
		return
	}
	sec, err := h.svc.SectionAtLine(r.Context(), path, line)
	if err != nil {
		writeError(w, "section at line", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

// Tasks handles GET /api/tasks. With a path the live tasks of that document
// are returned; without one the index is queried across the vault, and
// completed=true|false filters by state.
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if path := q.Get("path"); path != "" {
		tasks, err := h.svc.Tasks(r.Context(), path)
		if err != nil {
			writeError(w, "tasks", err, slog.String("path", path))
			return
		}
		writeJSON(w, http.StatusOK, TaskListResponse{Path: path, Tasks: tasks})
		return
	}

	var f index.TaskFilter
	if c := q.Get("completed"); c != "" {
		v, err := strconv.ParseBool(c)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'completed' must be a boolean"))
			return
		}
		f.Completed = &v
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	rows, err := h.svc.VaultTasks(r.Context(), f)
	if err != nil {
		writeError(w, "vault tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, VaultTaskListResponse{Tasks: rows})
}

// Task handles GET /api/task?path=&id=.
func (h *Handler) Task(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'id' is required"))
		return
	}
	task, err := h.svc.Task(r.Context(), path, id)
	if err != nil {
		writeError(w, "task", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Stats handles GET /api/stats?path=.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	path, ok := requirePath(w, r)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(r.Context(), path)
	if err != nil {
		writeError(w, "stats", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across section and task text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal/apperr"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
)

const maxBody = 10 << 20

// ListBuffers handles GET /api/buffers.
func (h *Handler) ListBuffers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BufferListResponse{Buffers: h.svc.Buffers(r.Context())})
}

// OpenBuffer handles POST /api/buffers.
//
//	@Summary		Open an editing buffer for a document
//	@Tags			buffers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenBufferRequest	true	"Path and optional initial lines"
//	@Success		201		{object}	models.BufferView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/buffers [post]
func (h *Handler) OpenBuffer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req OpenBufferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	buf, err := h.svc.OpenBuffer(r.Context(), req.Path, req.Lines)
	if err != nil {
		writeError(w, "open buffer", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, buf)
}

// CloseBuffer handles DELETE /api/buffers/{id}.
func (h *Handler) CloseBuffer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseBuffer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "close buffer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyEdits handles POST /api/buffers/{id}/edits. The body is a JSON
// array of edits applied in order. Edits that fail are skipped; the
// response is 422 with the remaining ones applied.
//
//	@Summary		Apply line edits to a buffer
//	@Tags			buffers
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Buffer id"
//	@Param			body	body		[]EditRequest	true	"Edits"
//	@Success		200		{object}	EditsResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	EditsResponse
//	@Security		BearerAuth
//	@Router			/buffers/{id}/edits [post]
func (h *Handler) ApplyEdits(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var edits []document.Edit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	id := chi.URLParam(r, "id")
	buf, err := h.svc.ApplyEdits(r.Context(), id, edits)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, EditsResponse{Buffer: buf})
	case errors.Is(err, apperr.ErrNotFound) && buf.ID == "":
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	default:
		writeJSON(w, http.StatusUnprocessableEntity, EditsResponse{Buffer: buf, Errors: err.Error()})
	}
}

// SaveBuffer handles POST /api/buffers/{id}/save.
//
//	@Summary		Write a buffer to the vault and reindex it
//	@Tags			buffers
//	@Produce		json
//	@Param			id		path		string	true	"Buffer id"
//	@Param			force	query		bool	false	"Overwrite a file changed on disk"
//	@Success		200		{object}	docservice.SaveResult
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"File changed on disk since the buffer was opened"
//	@Security		BearerAuth
//	@Router			/buffers/{id}/save [post]
func (h *Handler) SaveBuffer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := h.svc.SaveBuffer(r.Context(), id, force)
	if err != nil {
		writeError(w, "save buffer", err, slog.String("buffer", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// BufferOutline handles GET /api/buffers/{id}/outline. fresh=false returns
// the last parse without waiting for pending edits.
func (h *Handler) BufferOutline(w http.ResponseWriter, r *http.Request) {
	fresh := true
	if v := r.URL.Query().Get("fresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'fresh' must be a boolean"))
			return
		}
		fresh = b
	}
	view, err := h.svc.BufferOutline(r.Context(), chi.URLParam(r, "id"), fresh)
	if err != nil {
		writeError(w, "buffer outline", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

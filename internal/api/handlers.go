package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/noteservice"
	"github.com/starford/vaultgraph/internal/watcher"
)

// Reader is the read side of the note service.
type Reader interface {
	Note(ctx context.Context, rel string) (*noteservice.NoteDetail, error)
	Backlinks(ctx context.Context, rel string) ([]noteservice.NoteSummary, error)
	NotesWithTag(ctx context.Context, tag string) ([]noteservice.NoteSummary, error)
	Stats(ctx context.Context) (*noteservice.GraphStats, error)
	Duplicates(ctx context.Context) ([]graph.DuplicateGroup, error)
}

// WatcherSource reports live watcher counters.
type WatcherSource interface {
	Stats() watcher.Counters
}

const readyTimeout = 2 * time.Second

// Handler holds API route handlers.
type Handler struct {
	svc     Reader
	watcher WatcherSource
	logger  *slog.Logger
}

// NewHandler creates a Handler. w may be nil when no watcher runs.
func NewHandler(svc Reader, w WatcherSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, watcher: w, logger: logger}
}

// notePath extracts the vault-relative path after the route prefix.
// Encoded slashes (topics%2Fnote.md) are accepted.
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Ready handles GET /health/ready. The graph store must answer a count
// query within readyTimeout.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := h.svc.Stats(ctx); err != nil {
		h.logger.Warn("api: not ready", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: "graph store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Stats handles GET /api/stats.
//
//	@Summary	Node counts by label and relationship counts by type
//	@Tags		graph
//	@Produce	json
//	@Success	200	{object}	GraphStats
//	@Security	BearerAuth
//	@Router		/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetNote handles GET /api/notes/*.
//
//	@Summary	Get a note with its tags, links, headers, entities and backlinks
//	@Tags		notes
//	@Produce	json
//	@Param		path	path		string	true	"Vault-relative note path"
//	@Success	200		{object}	NoteDetail
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.Note(r.Context(), path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary	Notes linking to a note by name or alias
//	@Tags		notes
//	@Produce	json
//	@Param		path	path		string	true	"Vault-relative note path"
//	@Success	200		{object}	NoteListResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	notes, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// NotesWithTag handles GET /api/tags/{tag}/notes.
//
//	@Summary	Notes carrying a tag
//	@Tags		tags
//	@Produce	json
//	@Param		tag	path		string	true	"Tag name, with or without #"
//	@Success	200	{object}	NoteListResponse
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/tags/{tag}/notes [get]
func (h *Handler) NotesWithTag(w http.ResponseWriter, r *http.Request) {
	tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
	if err != nil || strings.TrimPrefix(tag, "#") == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("tag is required"))
		return
	}
	notes, err := h.svc.NotesWithTag(r.Context(), tag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// Duplicates handles GET /api/duplicates.
//
//	@Summary	Groups of notes with identical content
//	@Tags		graph
//	@Produce	json
//	@Success	200	{object}	DuplicatesResponse
//	@Security	BearerAuth
//	@Router		/duplicates [get]
func (h *Handler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Duplicates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{Groups: groups, Total: len(groups)})
}

// Watcher handles GET /api/watcher.
//
//	@Summary	Live watcher counters
//	@Tags		watcher
//	@Produce	json
//	@Success	200	{object}	watcher.Counters
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/watcher [get]
func (h *Handler) Watcher(w http.ResponseWriter, _ *http.Request) {
	if h.watcher == nil {
		writeJSON(w, http.StatusNotFound, errorBody("watcher not running"))
		return
	}
	writeJSON(w, http.StatusOK, h.watcher.Stats())
}

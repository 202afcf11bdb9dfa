package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/voxsync/internal/apperr"
	"github.com/starford/voxsync/internal/notesvc"
	"github.com/starford/voxsync/internal/syncer"
)

// Handler holds API route handlers.
type Handler struct {
	svc *notesvc.Service
	syn *syncer.Syncer
}

// NewHandler creates a new Handler.
func NewHandler(svc *notesvc.Service, syn *syncer.Syncer) *Handler {
	return &Handler{svc: svc, syn: syn}
}

// notePath extracts the document path from the URL (everything after
// /api/notes/). Supports encoded slashes (e.g. voicenotes%2Fnote.md).
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

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running":     h.syn.Running(),
		"last_report": h.syn.LastReport(),
	})
}

// TriggerSync handles POST /api/sync. The pass runs synchronously; clients
// wanting progress subscribe to /api/events instead of polling.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syn.Sync(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			writeJSON(w, http.StatusConflict, errorBody("sync already running"))
			return
		}
		slog.Error("sync trigger failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("sync failed"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRecordings handles GET /api/recordings with optional pagination,
// tag filter, and ?day=YYYY-MM-DD (or ?day=today) filtering.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if day := q.Get("day"); day != "" {
		if day == "today" {
			day = time.Now().Format("2006-01-02")
		}
		items, err := h.svc.TodayRecordings(r.Context(), day)
		if err != nil {
			slog.Error("list recordings failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"notes": items,
			"total": len(items),
		})
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		slog.Error("list recordings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notes": items,
		"total": total,
	})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*. The document is removed locally;
// its deletion is reported to the server on the next sync pass.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteLocal(r.Context(), path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DetachNote handles POST /api/detach/*: it strips the recording_id
// from the document so sync stops managing it.
func (h *Handler) DetachNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.StripRemoteRef(r.Context(), path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("detach note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

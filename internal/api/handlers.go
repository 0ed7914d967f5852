package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/qcrao/copilot/internal/assistant"
)

// Handler holds API route handlers.
type Handler struct {
	svc          Assistant
	defaultLimit int
}

// NewHandler creates a new Handler.
func NewHandler(svc Assistant, searchLimit int) *Handler {
	if searchLimit <= 0 {
		searchLimit = assistant.DefaultSearchLimit
	}
	return &Handler{svc: svc, defaultLimit: searchLimit}
}

// Context handles GET /api/context?page=&max_tokens=.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := assistant.BuildOptions{Page: strings.TrimSpace(q.Get("page"))}
	if raw := q.Get("max_tokens"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("max_tokens must be a non-negative integer"))
			return
		}
		opts.MaxTokens = n
	}

	built, err := h.svc.BuildWith(r.Context(), opts)
	if err != nil {
		slog.Error("build context failed", slog.String("page", opts.Page), slog.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, built)
}

// Search handles GET /api/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit := h.defaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = n
	}

	res, err := h.svc.SearchLimit(r.Context(), query, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

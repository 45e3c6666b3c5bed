// Package handler exposes the snippet engine over a JSON HTTP API.
//
// Handlers only translate HTTP into panel commands and outcomes back into
// JSON. Every mutation goes through panel.Controller.Dispatch, so the API, the
// CLI and the terminal palette produce the same state changes and the same
// toast messages for the same intent.
package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-box/internal/apperror"
	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/panel"
)

// SnippetReader is the read side the handlers need besides the controller.
type SnippetReader interface {
	Snippets() model.Collection
	Unsaved() []string
}

// SnippetHandler manages the snippet collection.
type SnippetHandler struct {
	ctl      *panel.Controller
	snippets SnippetReader
	logger   *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler.
func NewSnippetHandler(ctl *panel.Controller, snippets SnippetReader, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{ctl: ctl, snippets: snippets, logger: logger}
}

// ListResponse is the body of GET /api/snippets.
type ListResponse struct {
	Snippets model.Collection `json:"snippets"`
	// Unsaved lists ids whose last store write failed.
	Unsaved []string `json:"unsaved"`
}

// MutationResponse is the body of a successful mutation.
type MutationResponse struct {
	Snippet *model.Snippet `json:"snippet,omitempty"`
	Toasts  []string       `json:"toasts"`
}

// RefreshResponse is the body of POST /api/snippets/refresh.
type RefreshResponse struct {
	Total    int      `json:"total"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Toasts   []string `json:"toasts"`
}

type createRequest struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// HandleList returns the collection, filtered on title or code by ?q=.
//
// HTTP: GET /api/snippets?q=curl
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	unsaved := h.snippets.Unsaved()
	if unsaved == nil {
		unsaved = []string{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Snippets: panel.Visible(h.snippets.Snippets(), r.URL.Query().Get("q")),
		Unsaved:  unsaved,
	})
}

// HandleCreate adds a local snippet.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"title": "curl json", "code": "curl -H ..."}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	out := h.ctl.Dispatch(r.Context(), panel.Add{Title: req.Title, Code: req.Code})
	h.respond(w, http.StatusCreated, out)
}

// HandleUpdateTitle renames a snippet.
//
// HTTP: PUT /api/snippets/{id}/title
// REQUEST BODY: {"title": "new title"}
func (h *SnippetHandler) HandleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	out := h.ctl.Dispatch(r.Context(), panel.SaveTitle{ID: chi.URLParam(r, "id"), Title: req.Title})
	h.respond(w, http.StatusOK, out)
}

// HandleUpdateCode replaces a snippet's code.
//
// HTTP: PUT /api/snippets/{id}/code
// REQUEST BODY: {"code": "..."}
func (h *SnippetHandler) HandleUpdateCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	out := h.ctl.Dispatch(r.Context(), panel.SaveEdit{ID: chi.URLParam(r, "id"), Code: req.Code})
	h.respond(w, http.StatusOK, out)
}

// HandleDelete removes a snippet. The caller confirms with ?confirm=true;
// without it nothing is deleted.
//
// HTTP: DELETE /api/snippets/{id}?confirm=true
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, apperror.ValidationFailed("confirm", "deletion must be confirmed with ?confirm=true"))
		return
	}

	// The service also checks the store, so a record added by another
	// process is deletable before this one reloads.
	out := h.ctl.Dispatch(r.Context(), panel.Delete{ID: id, Confirmed: true})
	if out.Err != nil {
		writeError(w, out.Err, out.Toasts...)
		return
	}
	if !slices.Contains(out.Toasts, panel.MsgDeleted) {
		writeError(w, apperror.NotFound("snippet", id))
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{Toasts: toasts(out)})
}

// HandleRefresh merges the external snippet list into the collection.
//
// HTTP: POST /api/snippets/refresh
func (h *SnippetHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	out := h.ctl.Dispatch(r.Context(), panel.Refresh{})
	if out.Err != nil {
		writeError(w, out.Err, out.Toasts...)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Total:    len(out.Result.Collection),
		Imported: out.Result.Imported,
		Skipped:  out.Result.Skipped,
		Toasts:   toasts(out),
	})
}

func (h *SnippetHandler) respond(w http.ResponseWriter, status int, out panel.Outcome) {
	if out.Err != nil {
		writeError(w, out.Err, out.Toasts...)
		return
	}
	writeJSON(w, status, MutationResponse{Snippet: out.Snippet, Toasts: toasts(out)})
}

func toasts(out panel.Outcome) []string {
	if out.Toasts == nil {
		return []string{}
	}
	return out.Toasts
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-box/internal/model"
	"github.com/sakif/snippet-box/internal/palette"
	"github.com/sakif/snippet-box/internal/panel"
)

// PanelHandler exposes the panel and palette state machine. The server keeps
// one Controller, so every client of one server shares one panel.
type PanelHandler struct {
	ctl    *panel.Controller
	logger *slog.Logger
}

// NewPanelHandler creates a PanelHandler.
func NewPanelHandler(ctl *panel.Controller, logger *slog.Logger) *PanelHandler {
	return &PanelHandler{ctl: ctl, logger: logger}
}

// PanelResponse is the body of every /api/panel endpoint.
type PanelResponse struct {
	panel.State
	Visible model.Collection `json:"visible"`
	Toasts  []string         `json:"toasts,omitempty"`
}

// PaletteResponse is the body of every /api/palette endpoint.
type PaletteResponse struct {
	palette.State
	Toasts []string `json:"toasts,omitempty"`
	// Copied is the snippet code an activation put on the clipboard.
	Copied *string `json:"copied,omitempty"`
	// NeedsInput asks the client to collect a title and code, then POST /api/snippets.
	NeedsInput bool `json:"needsInput,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type widthRequest struct {
	Width int `json:"width"`
}

type moveRequest struct {
	Delta int `json:"delta"`
}

type activateRequest struct {
	// Index picks a specific result, as a click would. Nil activates the current selection.
	Index *int `json:"index"`
}

// =========================================================================
// PANEL
// =========================================================================

// HandleGetPanel returns the panel state and its filtered list.
// ?search= updates the panel search first.
//
// HTTP: GET /api/panel
func (h *PanelHandler) HandleGetPanel(w http.ResponseWriter, r *http.Request) {
	if q, ok := r.URL.Query()["search"]; ok && len(q) > 0 {
		h.ctl.Dispatch(r.Context(), panel.Search{Query: q[0]})
	}
	h.writePanel(w, panel.Outcome{State: h.ctl.State()})
}

// HandleTogglePanel shows or hides the panel.
//
// HTTP: POST /api/panel/toggle
func (h *PanelHandler) HandleTogglePanel(w http.ResponseWriter, r *http.Request) {
	h.writePanel(w, h.ctl.Dispatch(r.Context(), panel.TogglePanel{}))
}

// HandleSetWidth stores the panel width, clamped to the allowed range.
//
// HTTP: PUT /api/panel/width
// REQUEST BODY: {"width": 480}
func (h *PanelHandler) HandleSetWidth(w http.ResponseWriter, r *http.Request) {
	var req widthRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	out := h.ctl.Dispatch(r.Context(), panel.SetWidth{Width: req.Width})
	if out.Err != nil {
		writeError(w, out.Err, out.Toasts...)
		return
	}
	h.writePanel(w, out)
}

func (h *PanelHandler) writePanel(w http.ResponseWriter, out panel.Outcome) {
	writeJSON(w, http.StatusOK, PanelResponse{
		State:   out.State,
		Visible: h.ctl.Visible(),
		Toasts:  out.Toasts,
	})
}

// =========================================================================
// PALETTE
// =========================================================================

// HandleGetPalette returns the palette state.
//
// HTTP: GET /api/palette
func (h *PanelHandler) HandleGetPalette(w http.ResponseWriter, r *http.Request) {
	h.writePalette(w, panel.Outcome{State: h.ctl.State()})
}

// HandleOpenPalette opens the palette with an empty query.
//
// HTTP: POST /api/palette/open
func (h *PanelHandler) HandleOpenPalette(w http.ResponseWriter, r *http.Request) {
	h.writePalette(w, h.ctl.Dispatch(r.Context(), panel.OpenPalette{}))
}

// HandleClosePalette closes the palette.
//
// HTTP: POST /api/palette/close
func (h *PanelHandler) HandleClosePalette(w http.ResponseWriter, r *http.Request) {
	h.writePalette(w, h.ctl.Dispatch(r.Context(), panel.ClosePalette{}))
}

// HandleTogglePalette opens a closed palette or closes an open one.
//
// HTTP: POST /api/palette/toggle
func (h *PanelHandler) HandleTogglePalette(w http.ResponseWriter, r *http.Request) {
	h.writePalette(w, h.ctl.Dispatch(r.Context(), panel.TogglePalette{}))
}

// HandleSetQuery replaces the palette query.
//
// HTTP: PUT /api/palette/query
// REQUEST BODY: {"query": "curl"}
func (h *PanelHandler) HandleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	h.writePalette(w, h.ctl.Dispatch(r.Context(), panel.PaletteQuery{Query: req.Query}))
}

// HandleMove shifts the selection.
//
// HTTP: POST /api/palette/move
// REQUEST BODY: {"delta": 1}
func (h *PanelHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	h.writePalette(w, h.ctl.Dispatch(r.Context(), panel.Navigate{Delta: req.Delta}))
}

// HandleActivate runs the selected candidate. An empty body activates the
// current selection; {"index": n} picks result n first.
//
// HTTP: POST /api/palette/activate
func (h *PanelHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var cmd panel.Command = panel.Activate{}
	if r.ContentLength != 0 {
		var req activateRequest
		if !decodeJSON(w, r, &req, h.logger) {
			return
		}
		if req.Index != nil {
			cmd = panel.Pick{Index: *req.Index}
		}
	}

	out := h.ctl.Dispatch(r.Context(), cmd)
	if out.Err != nil {
		writeError(w, out.Err, out.Toasts...)
		return
	}
	h.writePalette(w, out)
}

func (h *PanelHandler) writePalette(w http.ResponseWriter, out panel.Outcome) {
	writeJSON(w, http.StatusOK, PaletteResponse{
		State:      out.State.Palette,
		Toasts:     out.Toasts,
		Copied:     out.Copied,
		NeedsInput: out.NeedsInput,
	})
}

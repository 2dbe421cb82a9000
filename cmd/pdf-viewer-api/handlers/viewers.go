package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/surface"
	"github.com/spherical/pdf-viewer/internal/viewer"
)

// ViewerHandler exposes document sessions over HTTP.
type ViewerHandler struct {
	logger   *observability.Logger
	registry *viewer.Registry
}

// NewViewerHandler creates a new viewer handler.
func NewViewerHandler(logger *observability.Logger, registry *viewer.Registry) *ViewerHandler {
	return &ViewerHandler{logger: logger, registry: registry}
}

// OpenSessionRequest is the body of PUT /viewers/{id}/session.
type OpenSessionRequest struct {
	Reference string `json:"reference"`
}

// IntersectionsRequest is the body of POST /viewers/{id}/intersections.
type IntersectionsRequest struct {
	Generation uint64                     `json:"generation"`
	Entries    []domain.IntersectionEntry `json:"entries"`
}

// ScrollRequest is the body of POST /viewers/{id}/scroll.
type ScrollRequest struct {
	Generation uint64 `json:"generation"`
	Top        int    `json:"top"`
	Height     int    `json:"height"`
}

// ElementsResponse is the body of GET /viewers/{id}/elements.
type ElementsResponse struct {
	Version  uint64            `json:"version"`
	Elements []surface.Element `json:"elements"`
}

// Create handles POST /viewers.
func (h *ViewerHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _, err := h.registry.Create()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// List handles GET /viewers.
func (h *ViewerHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"viewers": h.registry.Summary()})
}

// Delete handles DELETE /viewers/{id}.
func (h *ViewerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Remove(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenSession handles PUT /viewers/{id}/session.
func (h *ViewerHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Reference) == "" {
		writeError(w, http.StatusBadRequest, "reference is required", "")
		return
	}

	info, err := m.OpenSession(r.Context(), req.Reference)
	if err != nil {
		h.logger.WithViewer(chi.URLParam(r, "id")).Info().Err(err).Str("reference", req.Reference).Msg("Open failed")
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetSession handles GET /viewers/{id}/session.
func (h *ViewerHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	info, err := m.Session()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// TeardownSession handles DELETE /viewers/{id}/session.
func (h *ViewerHandler) TeardownSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	m.TeardownSession()
	w.WriteHeader(http.StatusNoContent)
}

// Intersections handles POST /viewers/{id}/intersections.
func (h *ViewerHandler) Intersections(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	var req IntersectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.Report(req.Generation, req.Entries); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Scroll handles POST /viewers/{id}/scroll.
func (h *ViewerHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	var req ScrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := m.Scroll(req.Generation, req.Top, req.Height); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Elements handles GET /viewers/{id}/elements.
func (h *ViewerHandler) Elements(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	c := m.Container()
	writeJSON(w, http.StatusOK, ElementsResponse{Version: c.Version(), Elements: c.Elements()})
}

// Page handles GET /viewers/{id}/pages/{page}, returning the rendered page as PNG.
// An optional width query parameter scales the image down.
func (h *ViewerHandler) Page(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}

	width := 0
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid width", v)
			return
		}
		width = n
	}

	canvas, err := m.Canvas(page)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	data, err := canvas.Thumbnail(width)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode page", err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Retry handles POST /viewers/{id}/pages/{page}/retry.
func (h *ViewerHandler) Retry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	page, ok := pageParam(w, r)
	if !ok {
		return
	}
	if err := m.Retry(page); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *ViewerHandler) manager(w http.ResponseWriter, r *http.Request) (*viewer.Manager, bool) {
	m, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return m, true
}

func pageParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "page")
	page, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page number", raw)
		return 0, false
	}
	return page, true
}

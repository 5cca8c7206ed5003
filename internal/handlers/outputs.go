package handlers

import (
	"net/http"
	"strconv"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/insight"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

type ExportRequest struct {
	Format   string `json:"format" validate:"required"`
	Audience string `json:"audience" validate:"max=100"`
}

type AskRequest struct {
	Persona string `json:"persona" validate:"required"`
	Prompt  string `json:"prompt" validate:"required,max=8000"`
}

// ArchivedHeader reports whether an export was stored.
const ArchivedHeader = "X-Export-Archived"

// Insights handles GET /projects/{projectID}/insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	insights, err := h.svc.Insights(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if insights == nil {
		insights = []insight.Insight{}
	}
	api.Success(w, http.StatusOK, insights)
}

// Export handles POST /projects/{projectID}/exports and answers with the
// rendered document as an attachment.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ExportRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.svc.Export(r.Context(), s, req.Format, req.Audience)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(ArchivedHeader, strconv.FormatBool(result.Archived))
	api.Attachment(w, result.FileName, result.ContentType, result.Content)
}

// ListExports handles GET /projects/{projectID}/exports.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	exports, err := h.svc.ListExports(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if exports == nil {
		exports = []project.Export{}
	}
	api.Success(w, http.StatusOK, exports)
}

// Ask handles POST /projects/{projectID}/ask. A responder failure is not an
// HTTP error: the answer carries the fallback text with fallback=true.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req AskRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	answer, err := h.svc.Ask(r.Context(), s, persona.Persona(req.Persona), req.Prompt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, answer)
}

// ListInteractions handles GET /projects/{projectID}/interactions.
func (h *Handler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	interactions, err := h.svc.ListInteractions(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if interactions == nil {
		interactions = []project.Interaction{}
	}
	api.Success(w, http.StatusOK, interactions)
}

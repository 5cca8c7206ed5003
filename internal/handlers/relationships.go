package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/workspace"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

type CreateRelationshipRequest struct {
	SourceBlockID    string  `json:"source_block_id" validate:"required"`
	TargetBlockID    string  `json:"target_block_id" validate:"required"`
	RelationshipType string  `json:"relationship_type" validate:"required"`
	Strength         float64 `json:"strength" validate:"gte=0,lte=1"`
	Notes            string  `json:"notes" validate:"max=2000"`
}

// CreateRelationship handles POST /projects/{projectID}/relationships.
func (h *Handler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req CreateRelationshipRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	source, err := shared.ParseBlockID(req.SourceBlockID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := shared.ParseBlockID(req.TargetBlockID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rel, err := h.svc.CreateRelationship(r.Context(), s, workspace.NewRelationship{
		Source:   source,
		Target:   target,
		Type:     relationship.Type(req.RelationshipType),
		Strength: req.Strength,
		Notes:    req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, rel)
}

// DeleteRelationship handles DELETE /projects/{projectID}/relationships/{relationshipID}.
func (h *Handler) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := shared.ParseRelationshipID(chi.URLParam(r, "relationshipID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteRelationship(r.Context(), s, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

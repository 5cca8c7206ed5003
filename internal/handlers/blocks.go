package handlers

import (
	"net/http"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/workspace"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p *PositionDTO) toDomain() (shared.Position, error) {
	return shared.NewPosition(p.X, p.Y)
}

type CreateBlockRequest struct {
	BlockType string          `json:"block_type" validate:"required"`
	Content   string          `json:"content"`
	Position  *PositionDTO    `json:"position" validate:"required"`
	Metadata  *block.Metadata `json:"metadata"`
}

// UpdateBlockRequest changes any subset of content, position and metadata.
// ExpectedVersion > 0 pins the update to that version.
type UpdateBlockRequest struct {
	ExpectedVersion int             `json:"expected_version" validate:"min=0"`
	Content         *string         `json:"content"`
	Position        *PositionDTO    `json:"position"`
	Metadata        *block.Metadata `json:"metadata"`
}

type RestoreRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}

type DeleteBlockResponse struct {
	RemovedRelationships []shared.RelationshipID `json:"removed_relationships"`
}

// CreateBlock handles POST /projects/{projectID}/blocks.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req CreateBlockRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pos, err := req.Position.toDomain()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := workspace.NewBlock{Type: block.Type(req.BlockType), Position: pos, Content: req.Content}
	if req.Metadata != nil {
		in.Metadata = *req.Metadata
	}
	b, err := h.svc.CreateBlock(r.Context(), s, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, b)
}

// UpdateBlock handles PATCH /projects/{projectID}/blocks/{blockID}.
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.blockID(w, r)
	if !ok {
		return
	}
	var req UpdateBlockRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	patch := block.Patch{Content: req.Content, Metadata: req.Metadata}
	if req.Position != nil {
		pos, err := req.Position.toDomain()
		if err != nil {
			h.fail(w, r, err)
			return
		}
		patch.Position = &pos
	}
	b, err := h.svc.UpdateBlock(r.Context(), s, id, req.ExpectedVersion, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, b)
}

// DeleteBlock handles DELETE /projects/{projectID}/blocks/{blockID}.
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.blockID(w, r)
	if !ok {
		return
	}
	removed, err := h.svc.DeleteBlock(r.Context(), s, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if removed == nil {
		removed = []shared.RelationshipID{}
	}
	api.Success(w, http.StatusOK, DeleteBlockResponse{RemovedRelationships: removed})
}

// History handles GET /projects/{projectID}/blocks/{blockID}/versions.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.blockID(w, r)
	if !ok {
		return
	}
	versions, err := h.svc.History(r.Context(), s, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []block.Version{}
	}
	api.Success(w, http.StatusOK, versions)
}

// RestoreVersion handles POST /projects/{projectID}/blocks/{blockID}/restore.
func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, ok := h.blockID(w, r)
	if !ok {
		return
	}
	var req RestoreRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.RestoreVersion(r.Context(), s, id, req.Version)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, b)
}

package handlers

import (
	"net/http"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

type CreateProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type UpdateProjectRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=50,dive,max=50"`
	Category    *string   `json:"category" validate:"omitempty,max=100"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=exploration synthesis composition"`
}

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	projects, err := h.svc.ListProjects(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if projects == nil {
		projects = []project.Project{}
	}
	api.Success(w, http.StatusOK, projects)
}

// CreateProject handles POST /projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.CreateProject(r.Context(), user, req.Title, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/projects/"+p.ID.String())
	api.Success(w, http.StatusCreated, p)
}

// GetProject handles GET /projects/{projectID}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProject(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, p)
}

// UpdateProject handles PATCH /projects/{projectID}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), s, project.Patch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Category:    req.Category,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, p)
}

// SetMode handles PUT /projects/{projectID}/mode.
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetModeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	next, err := h.svc.SetMode(r.Context(), s, project.WorkMode(req.Mode))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, next)
}

// DeleteProject handles DELETE /projects/{projectID}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProject(r.Context(), s); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Graph handles GET /projects/{projectID}/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.Graph(r.Context(), s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, snap)
}

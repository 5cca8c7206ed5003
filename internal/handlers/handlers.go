// Package handlers exposes the workspace over REST.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/graph"
	"github.com/wuzhiguocarter/Aletheia/internal/insight"
	"github.com/wuzhiguocarter/Aletheia/internal/middleware"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
	"github.com/wuzhiguocarter/Aletheia/internal/workspace"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

// Service is the workspace API the handlers call. *workspace.Workspace
// implements it.
type Service interface {
	CreateProject(ctx context.Context, user shared.UserID, title, description string) (project.Project, error)
	ListProjects(ctx context.Context, user shared.UserID) ([]project.Project, error)
	GetProject(ctx context.Context, s workspace.Session) (project.Project, error)
	UpdateProject(ctx context.Context, s workspace.Session, patch project.Patch) (project.Project, error)
	SetMode(ctx context.Context, s workspace.Session, mode project.WorkMode) (workspace.Session, error)
	DeleteProject(ctx context.Context, s workspace.Session) error
	Graph(ctx context.Context, s workspace.Session) (graph.Snapshot, error)

	CreateBlock(ctx context.Context, s workspace.Session, in workspace.NewBlock) (block.Block, error)
	UpdateBlock(ctx context.Context, s workspace.Session, id shared.BlockID, expectedVersion int, patch block.Patch) (block.Block, error)
	DeleteBlock(ctx context.Context, s workspace.Session, id shared.BlockID) ([]shared.RelationshipID, error)
	History(ctx context.Context, s workspace.Session, id shared.BlockID) ([]block.Version, error)
	RestoreVersion(ctx context.Context, s workspace.Session, id shared.BlockID, version int) (block.Block, error)

	CreateRelationship(ctx context.Context, s workspace.Session, in workspace.NewRelationship) (relationship.Relationship, error)
	DeleteRelationship(ctx context.Context, s workspace.Session, id shared.RelationshipID) error

	Insights(ctx context.Context, s workspace.Session) ([]insight.Insight, error)
	Export(ctx context.Context, s workspace.Session, format, audience string) (workspace.ExportResult, error)
	ListExports(ctx context.Context, s workspace.Session) ([]project.Export, error)
	Ask(ctx context.Context, s workspace.Session, who persona.Persona, prompt string) (workspace.Answer, error)
	ListInteractions(ctx context.Context, s workspace.Session) ([]project.Interaction, error)
}

var _ Service = (*workspace.Workspace)(nil)

// Handler serves the /api/v1 routes.
type Handler struct {
	svc       Service
	validator *Validator
	logger    *zap.Logger
}

// New builds a Handler.
func New(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, validator: NewValidator(), logger: logger.Named("handlers")}
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/projects", h.ListProjects)
	r.Post("/projects", h.CreateProject)

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/", h.GetProject)
		r.Patch("/", h.UpdateProject)
		r.Delete("/", h.DeleteProject)
		r.Put("/mode", h.SetMode)
		r.Get("/graph", h.Graph)
		r.Get("/canvas", h.Canvas)

		r.Post("/blocks", h.CreateBlock)
		r.Patch("/blocks/{blockID}", h.UpdateBlock)
		r.Delete("/blocks/{blockID}", h.DeleteBlock)
		r.Get("/blocks/{blockID}/versions", h.History)
		r.Post("/blocks/{blockID}/restore", h.RestoreVersion)

		r.Post("/relationships", h.CreateRelationship)
		r.Delete("/relationships/{relationshipID}", h.DeleteRelationship)

		r.Get("/insights", h.Insights)
		r.Post("/exports", h.Export)
		r.Get("/exports", h.ListExports)
		r.Post("/ask", h.Ask)
		r.Get("/interactions", h.ListInteractions)
	})
}

// user returns the authenticated caller. The auth middleware guarantees one
// on every /api/v1 route; the check guards against mounting without it.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) (shared.UserID, bool) {
	id, ok := middleware.UserID(r)
	if !ok {
		h.fail(w, r, errors.Unauthorized(errors.CodeUserUnauthorized.String(), "authentication required").Build())
		return "", false
	}
	return shared.UserID(id), true
}

// session builds the workspace session for the project in the path.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (workspace.Session, bool) {
	user, ok := h.user(w, r)
	if !ok {
		return workspace.Session{}, false
	}
	pid, err := shared.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err)
		return workspace.Session{}, false
	}
	return workspace.Session{UserID: user, ProjectID: pid}, true
}

func (h *Handler) blockID(w http.ResponseWriter, r *http.Request) (shared.BlockID, bool) {
	id, err := shared.ParseBlockID(chi.URLParam(r, "blockID"))
	if err != nil {
		h.fail(w, r, err)
		return "", false
	}
	return id, true
}

// fail writes err as a JSON error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r)
	status := api.Status(err)
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}
	api.FromError(w, err, requestID)
}

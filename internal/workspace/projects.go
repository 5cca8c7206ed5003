package workspace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
)

// CreateProject creates an empty project owned by user.
func (w *Workspace) CreateProject(ctx context.Context, user shared.UserID, title, description string) (project.Project, error) {
	ctx, span := w.startSpan(ctx, "workspace.CreateProject", Session{UserID: user})
	defer span.End()

	p, err := project.New(user, title, description, w.now().UTC())
	if err != nil {
		return project.Project{}, w.fail(span, err)
	}
	stored, err := w.gw.CreateProject(ctx, p)
	if err != nil {
		w.remoteFailed("CreateProject", Session{UserID: user, ProjectID: p.ID}, err)
		return project.Project{}, w.fail(span, err)
	}

	w.publish(ctx, w.event(events.TypeProjectCreated, Session{UserID: user, ProjectID: stored.ID}, stored.ID.String()))
	w.logger.Info("project created", zap.String("project_id", stored.ID.String()), zap.String("user_id", user.String()))
	return stored, nil
}

// ListProjects returns the user's projects, most recently updated first.
func (w *Workspace) ListProjects(ctx context.Context, user shared.UserID) ([]project.Project, error) {
	if user == "" {
		return nil, shared.ErrEmptyUserID
	}
	return w.gw.ListProjects(ctx, user)
}

// GetProject returns the session's project after an ownership check.
func (w *Workspace) GetProject(ctx context.Context, s Session) (project.Project, error) {
	if !s.HasProject() {
		return project.Project{}, ErrNoProject
	}
	return w.ownedProject(ctx, s)
}

// UpdateProject applies patch to the session's project.
func (w *Workspace) UpdateProject(ctx context.Context, s Session, patch project.Patch) (project.Project, error) {
	ctx, span := w.startSpan(ctx, "workspace.UpdateProject", s)
	defer span.End()

	current, err := w.GetProject(ctx, s)
	if err != nil {
		return project.Project{}, w.fail(span, err)
	}
	next, err := current.Apply(patch, w.now().UTC())
	if err != nil {
		return project.Project{}, w.fail(span, err)
	}
	stored, err := w.gw.UpdateProject(ctx, next)
	if err != nil {
		w.remoteFailed("UpdateProject", s, err)
		return project.Project{}, w.fail(span, err)
	}

	w.mu.Lock()
	op, open := w.open[sessionKey{s.UserID, s.ProjectID}]
	w.mu.Unlock()
	if open {
		op.setInfo(stored)
	}
	return stored, nil
}

// SetMode switches the project's work mode and returns the updated session.
func (w *Workspace) SetMode(ctx context.Context, s Session, mode project.WorkMode) (Session, error) {
	ctx, span := w.startSpan(ctx, "workspace.SetMode", s, attribute.String("project.mode", string(mode)))
	defer span.End()

	parsed, err := project.ParseWorkMode(string(mode))
	if err != nil {
		return s, w.fail(span, err)
	}
	if _, err := w.UpdateProject(ctx, s, project.Patch{WorkMode: &parsed}); err != nil {
		return s, err
	}

	next := s
	next.Mode = parsed
	w.publish(ctx, w.event(events.TypeModeChanged, s, s.ProjectID.String()).With("mode", string(parsed)))
	return next, nil
}

// DeleteProject removes the session's project with everything in it and
// closes every graph open on it.
func (w *Workspace) DeleteProject(ctx context.Context, s Session) error {
	ctx, span := w.startSpan(ctx, "workspace.DeleteProject", s)
	defer span.End()

	if _, err := w.GetProject(ctx, s); err != nil {
		return w.fail(span, err)
	}
	if err := w.gw.DeleteProject(ctx, s.ProjectID); err != nil {
		w.remoteFailed("DeleteProject", s, err)
		return w.fail(span, err)
	}

	w.mu.Lock()
	for key := range w.open {
		if key.project == s.ProjectID {
			delete(w.open, key)
		}
	}
	w.mu.Unlock()

	w.publish(ctx, w.event(events.TypeProjectDeleted, s, s.ProjectID.String()))
	w.logger.Info("project deleted", zap.String("project_id", s.ProjectID.String()))
	return nil
}

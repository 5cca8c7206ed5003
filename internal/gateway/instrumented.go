package gateway

import (
	"context"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
)

// Instrumented records a counter and a latency histogram per gateway call.
type Instrumented struct {
	inner   Gateway
	metrics *observability.Collector
}

var _ Gateway = (*Instrumented)(nil)

// NewInstrumented wraps inner.
func NewInstrumented(inner Gateway, metrics *observability.Collector) *Instrumented {
	return &Instrumented{inner: inner, metrics: metrics}
}

// Status buckets an error into a metrics label.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsNotFound(err):
		return "not_found"
	case errors.IsConflict(err):
		return "conflict"
	case errors.IsValidation(err):
		return "invalid"
	case errors.HasCode(err, errors.CodeGatewayUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (i *Instrumented) observe(op, table string, start time.Time, err error) {
	i.metrics.ObserveGateway(op, table, Status(err), time.Since(start))
}

func measure[T any](i *Instrumented, op, table string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	i.observe(op, table, start, err)
	return out, err
}

func (i *Instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.inner.Ping(ctx)
	i.observe("Ping", "", start, err)
	return err
}

func (i *Instrumented) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	return measure(i, "CreateProject", TableProjects, func() (project.Project, error) { return i.inner.CreateProject(ctx, p) })
}

func (i *Instrumented) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	return measure(i, "ListProjects", TableProjects, func() ([]project.Project, error) { return i.inner.ListProjects(ctx, owner) })
}

func (i *Instrumented) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	return measure(i, "GetProject", TableProjects, func() (project.Project, error) { return i.inner.GetProject(ctx, id) })
}

func (i *Instrumented) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	return measure(i, "UpdateProject", TableProjects, func() (project.Project, error) { return i.inner.UpdateProject(ctx, p) })
}

func (i *Instrumented) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	start := time.Now()
	err := i.inner.DeleteProject(ctx, id)
	i.observe("DeleteProject", TableProjects, start, err)
	return err
}

func (i *Instrumented) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	return measure(i, "InsertBlock", TableBlocks, func() (block.Block, error) { return i.inner.InsertBlock(ctx, b) })
}

func (i *Instrumented) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	return measure(i, "ListBlocks", TableBlocks, func() ([]block.Block, error) { return i.inner.ListBlocks(ctx, projectID) })
}

func (i *Instrumented) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	return measure(i, "UpdateBlock", TableBlocks, func() (block.Block, error) { return i.inner.UpdateBlock(ctx, b, expectedVersion) })
}

func (i *Instrumented) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	return measure(i, "ReviseBlock", TableBlocks, func() (block.Block, error) { return i.inner.ReviseBlock(ctx, b, prior) })
}

func (i *Instrumented) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	start := time.Now()
	err := i.inner.DeleteBlock(ctx, projectID, id)
	i.observe("DeleteBlock", TableBlocks, start, err)
	return err
}

func (i *Instrumented) InsertRelationship(ctx context.Context, rel relationship.Relationship) (relationship.Relationship, error) {
	return measure(i, "InsertRelationship", TableRelationships, func() (relationship.Relationship, error) {
		return i.inner.InsertRelationship(ctx, rel)
	})
}

func (i *Instrumented) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	return measure(i, "ListRelationships", TableRelationships, func() ([]relationship.Relationship, error) {
		return i.inner.ListRelationships(ctx, projectID)
	})
}

func (i *Instrumented) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	start := time.Now()
	err := i.inner.DeleteRelationship(ctx, projectID, id)
	i.observe("DeleteRelationship", TableRelationships, start, err)
	return err
}

func (i *Instrumented) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	return measure(i, "DeleteRelationshipsForBlock", TableRelationships, func() ([]shared.RelationshipID, error) {
		return i.inner.DeleteRelationshipsForBlock(ctx, projectID, blockID)
	})
}

func (i *Instrumented) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	return measure(i, "InsertBlockVersion", TableVersions, func() (block.Version, error) { return i.inner.InsertBlockVersion(ctx, v) })
}

func (i *Instrumented) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	return measure(i, "ListBlockVersions", TableVersions, func() ([]block.Version, error) {
		return i.inner.ListBlockVersions(ctx, blockID)
	})
}

func (i *Instrumented) InsertInteraction(ctx context.Context, in project.Interaction) (project.Interaction, error) {
	return measure(i, "InsertInteraction", TableInteractions, func() (project.Interaction, error) {
		return i.inner.InsertInteraction(ctx, in)
	})
}

func (i *Instrumented) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	return measure(i, "ListInteractions", TableInteractions, func() ([]project.Interaction, error) {
		return i.inner.ListInteractions(ctx, projectID)
	})
}

func (i *Instrumented) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	return measure(i, "InsertExport", TableExports, func() (project.Export, error) { return i.inner.InsertExport(ctx, e) })
}

func (i *Instrumented) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	return measure(i, "ListExports", TableExports, func() ([]project.Export, error) { return i.inner.ListExports(ctx, projectID) })
}

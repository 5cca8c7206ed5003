// Package supabase stores projects in the hosted Postgres tables exposed by
// Supabase's PostgREST endpoint.
package supabase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

const (
	returnRows = "representation"
	noCount    = ""
)

// Postgres error codes surfaced by PostgREST.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Tables opens a query on a table. Both *supabase.Client and
// *postgrest.Client satisfy it.
type Tables interface {
	From(table string) *postgrest.QueryBuilder
}

// Gateway implements gateway.Gateway over PostgREST.
type Gateway struct {
	db     Tables
	now    func() time.Time
	logger *zap.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// New wraps an existing table client.
func New(db Tables, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{db: db, now: time.Now, logger: logger.Named("supabase_gateway")}
}

// Connect builds a Supabase client for url using the service role key.
func Connect(url, serviceKey string, logger *zap.Logger) (*Gateway, error) {
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, gateway.Failure(err, "Connect", "")
	}
	return New(client, logger), nil
}

// ============================================================================
// ROW TYPES
// ============================================================================

type blockUpdate struct {
	Type      block.Type      `json:"block_type"`
	Content   string          `json:"content"`
	Metadata  block.Metadata  `json:"metadata"`
	Position  shared.Position `json:"position"`
	Version   int             `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type projectUpdate struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Metadata    project.Metadata `json:"metadata"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type idRow struct {
	ID string `json:"id"`
}

type versionRow struct {
	Version int `json:"version"`
}

func (g *Gateway) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return g.now().UTC()
	}
	return t
}

// classify maps a PostgREST error onto the gateway taxonomy.
func classify(err error, op, table, id string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, pgUniqueViolation):
		return gateway.Duplicate(table, id)
	case strings.Contains(msg, pgForeignKeyViolation) && table == gateway.TableRelationships:
		return errors.From(shared.ErrBlockNotFound).
			WithDetailsf("relationship %s references a missing block", id).
			Build()
	}
	return gateway.Failure(err, op, table)
}

func insertOne[T any](ctx context.Context, g *Gateway, table, op, id string, row T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var out []T
	if _, err := g.db.From(table).Insert(row, false, "", returnRows, noCount).ExecuteTo(&out); err != nil {
		return zero, classify(err, op, table, id)
	}
	if len(out) == 0 {
		return row, nil
	}
	return out[0], nil
}

func selectWhere[T any](ctx context.Context, g *Gateway, table, op, column, value, orderBy string, ascending bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := g.db.From(table).Select("*", noCount, false).Eq(column, value)
	if orderBy != "" {
		q = q.Order(orderBy, &postgrest.OrderOpts{Ascending: ascending})
	}
	var out []T
	if _, err := q.ExecuteTo(&out); err != nil {
		return nil, gateway.Failure(err, op, table)
	}
	return out, nil
}

// ============================================================================
// PROJECTS
// ============================================================================

func (g *Gateway) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var out []idRow
	_, err := g.db.From(gateway.TableProjects).Select("id", noCount, false).Limit(1, "").ExecuteTo(&out)
	return gateway.Failure(err, "Ping", gateway.TableProjects)
}

func (g *Gateway) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = shared.NewProjectID()
	}
	p.CreatedAt = g.stamp(p.CreatedAt)
	p.UpdatedAt = g.stamp(p.UpdatedAt)
	return insertOne(ctx, g, gateway.TableProjects, "CreateProject", p.ID.String(), p)
}

func (g *Gateway) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	return selectWhere[project.Project](ctx, g, gateway.TableProjects, "ListProjects", "owner_id", owner.String(), "updated_at", false)
}

func (g *Gateway) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	rows, err := selectWhere[project.Project](ctx, g, gateway.TableProjects, "GetProject", "id", id.String(), "", false)
	if err != nil {
		return project.Project{}, err
	}
	if len(rows) == 0 {
		return project.Project{}, shared.ProjectNotFound(id)
	}
	return rows[0], nil
}

func (g *Gateway) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if err := ctx.Err(); err != nil {
		return project.Project{}, err
	}
	update := projectUpdate{
		Title:       p.Title,
		Description: p.Description,
		Metadata:    p.Metadata,
		UpdatedAt:   g.stamp(p.UpdatedAt),
	}
	var out []project.Project
	_, err := g.db.From(gateway.TableProjects).
		Update(update, returnRows, noCount).
		Eq("id", p.ID.String()).
		ExecuteTo(&out)
	if err != nil {
		return project.Project{}, gateway.Failure(err, "UpdateProject", gateway.TableProjects)
	}
	if len(out) == 0 {
		return project.Project{}, shared.ProjectNotFound(p.ID)
	}
	return out[0], nil
}

// DeleteProject removes dependent rows before the project row.
func (g *Gateway) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	for _, table := range []string{gateway.TableRelationships, gateway.TableInteractions, gateway.TableExports} {
		if err := g.deleteWhere(ctx, table, "DeleteProject", "project_id", id.String(), nil); err != nil {
			return err
		}
	}

	blocks, err := g.ListBlocks(ctx, id)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := g.deleteWhere(ctx, gateway.TableVersions, "DeleteProject", "block_id", b.ID.String(), nil); err != nil {
			return err
		}
	}
	if err := g.deleteWhere(ctx, gateway.TableBlocks, "DeleteProject", "project_id", id.String(), nil); err != nil {
		return err
	}

	var removed []idRow
	if err := g.deleteWhere(ctx, gateway.TableProjects, "DeleteProject", "id", id.String(), &removed); err != nil {
		return err
	}
	if len(removed) == 0 {
		return shared.ProjectNotFound(id)
	}
	return nil
}

func (g *Gateway) deleteWhere(ctx context.Context, table, op, column, value string, out *[]idRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []idRow
	if _, err := g.db.From(table).Delete(returnRows, noCount).Eq(column, value).ExecuteTo(&rows); err != nil {
		return gateway.Failure(err, op, table)
	}
	if out != nil {
		*out = rows
	}
	return nil
}

// ============================================================================
// BLOCKS
// ============================================================================

func (g *Gateway) InsertBlock(ctx context.Context, b block.Block) (block.Block, error) {
	if b.ID == "" {
		b.ID = shared.NewBlockID()
	}
	if b.Version == 0 {
		b.Version = block.InitialVersion
	}
	b.CreatedAt = g.stamp(b.CreatedAt)
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	return insertOne(ctx, g, gateway.TableBlocks, "InsertBlock", b.ID.String(), b)
}

func (g *Gateway) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	return selectWhere[block.Block](ctx, g, gateway.TableBlocks, "ListBlocks", "project_id", projectID.String(), "created_at", false)
}

func (g *Gateway) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	if err := ctx.Err(); err != nil {
		return block.Block{}, err
	}
	update := blockUpdate{
		Type:      b.Type,
		Content:   b.Content,
		Metadata:  b.Metadata,
		Position:  b.Position,
		Version:   b.Version,
		UpdatedAt: g.stamp(b.UpdatedAt),
	}
	q := g.db.From(gateway.TableBlocks).
		Update(update, returnRows, noCount).
		Eq("id", b.ID.String()).
		Eq("project_id", b.ProjectID.String())
	if expectedVersion > 0 {
		q = q.Eq("version", strconv.Itoa(expectedVersion))
	}

	var out []block.Block
	if _, err := q.ExecuteTo(&out); err != nil {
		return block.Block{}, gateway.Failure(err, "UpdateBlock", gateway.TableBlocks)
	}
	if len(out) > 0 {
		return out[0], nil
	}

	// Nothing matched: either the block is gone or the version moved on.
	current, err := selectWhere[versionRow](ctx, g, gateway.TableBlocks, "UpdateBlock", "id", b.ID.String(), "", false)
	if err != nil {
		return block.Block{}, err
	}
	if len(current) == 0 || expectedVersion == 0 {
		return block.Block{}, shared.BlockNotFound(b.ID)
	}
	g.logger.Debug("block update rejected by version check",
		zap.String("block_id", b.ID.String()),
		zap.Int("expected", expectedVersion),
		zap.Int("actual", current[0].Version),
	)
	return block.Block{}, gateway.Conflict(b.ID, expectedVersion, current[0].Version)
}

// ReviseBlock swaps the block and archives prior. PostgREST offers no
// multi-statement transaction, so a failed archive write restores the row
// read before the swap, conditioned on the new version.
func (g *Gateway) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	current, err := selectWhere[block.Block](ctx, g, gateway.TableBlocks, "ReviseBlock", "id", b.ID.String(), "", false)
	if err != nil {
		return block.Block{}, err
	}
	if len(current) == 0 || current[0].ProjectID != b.ProjectID {
		return block.Block{}, shared.BlockNotFound(b.ID)
	}
	if current[0].Version != prior.Version {
		return block.Block{}, gateway.Conflict(b.ID, prior.Version, current[0].Version)
	}

	stored, err := g.UpdateBlock(ctx, b, prior.Version)
	if err != nil {
		return block.Block{}, err
	}
	if _, err := g.InsertBlockVersion(ctx, prior); err != nil {
		if _, rerr := g.UpdateBlock(context.WithoutCancel(ctx), current[0], stored.Version); rerr != nil {
			g.logger.Error("failed to restore block after version archive failed",
				zap.String("block_id", b.ID.String()),
				zap.Int("version", stored.Version),
				zap.Error(rerr),
			)
		}
		return block.Block{}, err
	}
	return stored, nil
}

func (g *Gateway) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []idRow
	_, err := g.db.From(gateway.TableBlocks).
		Delete(returnRows, noCount).
		Eq("id", id.String()).
		Eq("project_id", projectID.String()).
		ExecuteTo(&rows)
	if err != nil {
		return gateway.Failure(err, "DeleteBlock", gateway.TableBlocks)
	}
	if len(rows) == 0 {
		return shared.BlockNotFound(id)
	}
	return nil
}

// ============================================================================
// RELATIONSHIPS
// ============================================================================

func (g *Gateway) InsertRelationship(ctx context.Context, r relationship.Relationship) (relationship.Relationship, error) {
	if r.ID == "" {
		r.ID = shared.NewRelationshipID()
	}
	if r.Strength == 0 {
		r.Strength = relationship.DefaultStrength
	}
	r.CreatedAt = g.stamp(r.CreatedAt)
	return insertOne(ctx, g, gateway.TableRelationships, "InsertRelationship", r.ID.String(), r)
}

func (g *Gateway) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	return selectWhere[relationship.Relationship](ctx, g, gateway.TableRelationships, "ListRelationships", "project_id", projectID.String(), "created_at", true)
}

func (g *Gateway) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []idRow
	_, err := g.db.From(gateway.TableRelationships).
		Delete(returnRows, noCount).
		Eq("id", id.String()).
		Eq("project_id", projectID.String()).
		ExecuteTo(&rows)
	if err != nil {
		return gateway.Failure(err, "DeleteRelationship", gateway.TableRelationships)
	}
	if len(rows) == 0 {
		return shared.RelationshipNotFound(id)
	}
	return nil
}

func (g *Gateway) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []idRow
	_, err := g.db.From(gateway.TableRelationships).
		Delete(returnRows, noCount).
		Eq("project_id", projectID.String()).
		Or("source_block_id.eq."+blockID.String()+",target_block_id.eq."+blockID.String(), "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, gateway.Failure(err, "DeleteRelationshipsForBlock", gateway.TableRelationships)
	}
	ids := make([]shared.RelationshipID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, shared.RelationshipID(r.ID))
	}
	return ids, nil
}

// ============================================================================
// VERSIONS AND ARCHIVE
// ============================================================================

func (g *Gateway) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	if v.ID == "" {
		v.ID = shared.NewRecordID()
	}
	if v.ChangeSummary == "" {
		v.ChangeSummary = block.DefaultChangeSummary
	}
	v.CreatedAt = g.stamp(v.CreatedAt)
	return insertOne(ctx, g, gateway.TableVersions, "InsertBlockVersion", v.ID, v)
}

func (g *Gateway) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	return selectWhere[block.Version](ctx, g, gateway.TableVersions, "ListBlockVersions", "block_id", blockID.String(), "version", false)
}

func (g *Gateway) InsertInteraction(ctx context.Context, i project.Interaction) (project.Interaction, error) {
	if i.ID == "" {
		i.ID = shared.NewRecordID()
	}
	i.CreatedAt = g.stamp(i.CreatedAt)
	return insertOne(ctx, g, gateway.TableInteractions, "InsertInteraction", i.ID, i)
}

func (g *Gateway) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	return selectWhere[project.Interaction](ctx, g, gateway.TableInteractions, "ListInteractions", "project_id", projectID.String(), "created_at", false)
}

func (g *Gateway) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	if e.ID == "" {
		e.ID = shared.NewRecordID()
	}
	if e.Audience == "" {
		e.Audience = project.DefaultAudience
	}
	e.CreatedAt = g.stamp(e.CreatedAt)
	return insertOne(ctx, g, gateway.TableExports, "InsertExport", e.ID, e)
}

func (g *Gateway) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	return selectWhere[project.Export](ctx, g, gateway.TableExports, "ListExports", "project_id", projectID.String(), "created_at", false)
}

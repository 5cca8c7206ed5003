// Package sqlstore stores projects in a relational database through gorm.
// Postgres is the production dialect; SQLite serves local runs and tests.
package sqlstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

// Supported dialects.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Gateway implements gateway.Gateway over gorm.
type Gateway struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// Open connects with the named driver and migrates the schema.
func Open(driver, dsn string, logger *zap.Logger) (*Gateway, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, gateway.Failure(err, "Open", "")
	}

	g := New(db, logger)
	if err := g.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return g, nil
}

// New wraps an open database handle.
func New(db *gorm.DB, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{db: db, now: time.Now, logger: logger.Named("sql_gateway")}
}

// Migrate creates or updates every table.
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		return gateway.Failure(err, "Migrate", "")
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gateway) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return g.now().UTC()
	}
	return t
}

func classify(err error, op, table, id string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return gateway.Duplicate(table, id)
	}
	return gateway.Failure(err, op, table)
}

func (g *Gateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return gateway.Failure(err, "Ping", "")
	}
	return gateway.Failure(sqlDB.PingContext(ctx), "Ping", "")
}

// ============================================================================
// PROJECTS
// ============================================================================

func (g *Gateway) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = shared.NewProjectID()
	}
	p.CreatedAt = g.stamp(p.CreatedAt)
	p.UpdatedAt = g.stamp(p.UpdatedAt)

	m := toProjectModel(p)
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return project.Project{}, classify(err, "CreateProject", gateway.TableProjects, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error) {
	var rows []projectModel
	if err := g.db.WithContext(ctx).
		Where("owner_id = ?", owner.String()).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListProjects", gateway.TableProjects)
	}
	out := make([]project.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *Gateway) GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error) {
	var m projectModel
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(&m).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return project.Project{}, shared.ProjectNotFound(id)
	}
	if err != nil {
		return project.Project{}, gateway.Failure(err, "GetProject", gateway.TableProjects)
	}
	return m.toDomain(), nil
}

func (g *Gateway) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.UpdatedAt = g.stamp(p.UpdatedAt)
	m := toProjectModel(p)

	res := g.db.WithContext(ctx).
		Model(&projectModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"title":       m.Title,
			"description": m.Description,
			"metadata":    m.Metadata,
			"updated_at":  m.UpdatedAt,
		})
	if res.Error != nil {
		return project.Project{}, gateway.Failure(res.Error, "UpdateProject", gateway.TableProjects)
	}
	if res.RowsAffected == 0 {
		return project.Project{}, shared.ProjectNotFound(p.ID)
	}
	return g.GetProject(ctx, p.ID)
}

// DeleteProject removes the project and its dependents in one transaction.
func (g *Gateway) DeleteProject(ctx context.Context, id shared.ProjectID) error {
	pid := id.String()
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blockIDs := tx.Model(&blockModel{}).Select("id").Where("project_id = ?", pid)
		if err := tx.Where("block_id IN (?)", blockIDs).Delete(&versionModel{}).Error; err != nil {
			return err
		}
		for _, m := range []any{&relationshipModel{}, &interactionModel{}, &exportModel{}, &blockModel{}} {
			if err := tx.Where("project_id = ?", pid).Delete(m).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", pid).Delete(&projectModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ProjectNotFound(id)
		}
		return nil
	})
	return gateway.Failure(err, "DeleteProject", gateway.TableProjects)
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

	m := toBlockModel(b)
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return block.Block{}, classify(err, "InsertBlock", gateway.TableBlocks, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error) {
	var rows []blockModel
	if err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID.String()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListBlocks", gateway.TableBlocks)
	}
	out := make([]block.Block, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *Gateway) UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error) {
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	return g.swapBlock(g.db.WithContext(ctx), b, expectedVersion)
}

// ReviseBlock swaps the block and archives prior in one transaction.
func (g *Gateway) ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error) {
	b.UpdatedAt = g.stamp(b.UpdatedAt)
	prior = g.prepareVersion(prior)

	var stored block.Block
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if stored, err = g.swapBlock(tx, b, prior.Version); err != nil {
			return err
		}
		m := toVersionModel(prior)
		return classify(tx.Create(&m).Error, "ReviseBlock", gateway.TableVersions, m.ID)
	})
	if err != nil {
		return block.Block{}, gateway.Failure(err, "ReviseBlock", gateway.TableBlocks)
	}
	return stored, nil
}

func (g *Gateway) swapBlock(db *gorm.DB, b block.Block, expectedVersion int) (block.Block, error) {
	m := toBlockModel(b)

	q := db.Model(&blockModel{}).
		Where("id = ? AND project_id = ?", m.ID, m.ProjectID)
	if expectedVersion > 0 {
		q = q.Where("version = ?", expectedVersion)
	}
	res := q.Updates(map[string]any{
		"block_type": m.Type,
		"content":    m.Content,
		"metadata":   m.Metadata,
		"position":   m.Position,
		"version":    m.Version,
		"updated_at": m.UpdatedAt,
	})
	if res.Error != nil {
		return block.Block{}, gateway.Failure(res.Error, "UpdateBlock", gateway.TableBlocks)
	}

	var current blockModel
	err := db.
		Where("id = ? AND project_id = ?", m.ID, m.ProjectID).
		First(&current).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return block.Block{}, shared.BlockNotFound(b.ID)
	}
	if err != nil {
		return block.Block{}, gateway.Failure(err, "UpdateBlock", gateway.TableBlocks)
	}
	if res.RowsAffected == 0 {
		g.logger.Debug("block update rejected by version check",
			zap.String("block_id", m.ID),
			zap.Int("expected", expectedVersion),
			zap.Int("actual", current.Version),
		)
		return block.Block{}, gateway.Conflict(b.ID, expectedVersion, current.Version)
	}
	return current.toDomain(), nil
}

func (g *Gateway) DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error {
	res := g.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id.String(), projectID.String()).
		Delete(&blockModel{})
	if res.Error != nil {
		return gateway.Failure(res.Error, "DeleteBlock", gateway.TableBlocks)
	}
	if res.RowsAffected == 0 {
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
	m := toRelationshipModel(r)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, end := range []shared.BlockID{r.SourceBlockID, r.TargetBlockID} {
			var found int64
			if err := tx.Model(&blockModel{}).
				Where("id = ? AND project_id = ?", end.String(), m.ProjectID).
				Count(&found).Error; err != nil {
				return err
			}
			if found == 0 {
				return shared.BlockNotFound(end)
			}
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return relationship.Relationship{}, classify(err, "InsertRelationship", gateway.TableRelationships, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error) {
	var rows []relationshipModel
	if err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListRelationships", gateway.TableRelationships)
	}
	out := make([]relationship.Relationship, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *Gateway) DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error {
	res := g.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id.String(), projectID.String()).
		Delete(&relationshipModel{})
	if res.Error != nil {
		return gateway.Failure(res.Error, "DeleteRelationship", gateway.TableRelationships)
	}
	if res.RowsAffected == 0 {
		return shared.RelationshipNotFound(id)
	}
	return nil
}

func (g *Gateway) DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error) {
	var ids []shared.RelationshipID
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []relationshipModel
		if err := tx.
			Where("project_id = ? AND (source_block_id = ? OR target_block_id = ?)",
				projectID.String(), blockID.String(), blockID.String()).
			Order("created_at ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		raw := make([]string, 0, len(rows))
		for _, r := range rows {
			raw = append(raw, r.ID)
			ids = append(ids, shared.RelationshipID(r.ID))
		}
		return tx.Where("id IN ?", raw).Delete(&relationshipModel{}).Error
	})
	if err != nil {
		return nil, gateway.Failure(err, "DeleteRelationshipsForBlock", gateway.TableRelationships)
	}
	return ids, nil
}

// ============================================================================
// VERSIONS AND ARCHIVE
// ============================================================================

func (g *Gateway) InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error) {
	m := toVersionModel(g.prepareVersion(v))
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return block.Version{}, classify(err, "InsertBlockVersion", gateway.TableVersions, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) prepareVersion(v block.Version) block.Version {
	if v.ID == "" {
		v.ID = shared.NewRecordID()
	}
	if v.ChangeSummary == "" {
		v.ChangeSummary = block.DefaultChangeSummary
	}
	v.CreatedAt = g.stamp(v.CreatedAt)
	return v
}

func (g *Gateway) ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error) {
	var rows []versionModel
	if err := g.db.WithContext(ctx).
		Where("block_id = ?", blockID.String()).
		Order("version DESC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListBlockVersions", gateway.TableVersions)
	}
	out := make([]block.Version, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *Gateway) InsertInteraction(ctx context.Context, i project.Interaction) (project.Interaction, error) {
	if i.ID == "" {
		i.ID = shared.NewRecordID()
	}
	i.CreatedAt = g.stamp(i.CreatedAt)

	m := toInteractionModel(i)
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return project.Interaction{}, classify(err, "InsertInteraction", gateway.TableInteractions, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error) {
	var rows []interactionModel
	if err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID.String()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListInteractions", gateway.TableInteractions)
	}
	out := make([]project.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (g *Gateway) InsertExport(ctx context.Context, e project.Export) (project.Export, error) {
	if e.ID == "" {
		e.ID = shared.NewRecordID()
	}
	if e.Audience == "" {
		e.Audience = project.DefaultAudience
	}
	e.CreatedAt = g.stamp(e.CreatedAt)

	m := toExportModel(e)
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return project.Export{}, classify(err, "InsertExport", gateway.TableExports, m.ID)
	}
	return m.toDomain(), nil
}

func (g *Gateway) ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error) {
	var rows []exportModel
	if err := g.db.WithContext(ctx).
		Where("project_id = ?", projectID.String()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, gateway.Failure(err, "ListExports", gateway.TableExports)
	}
	out := make([]project.Export, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

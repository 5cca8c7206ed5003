package sqlstore

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	g := New(db, zap.NewNop())
	require.NoError(t, g.Migrate(context.Background()))
	t.Cleanup(func() { _ = g.Close() })
	return g
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seedBlock(t *testing.T, g *Gateway, pid shared.ProjectID, id shared.BlockID, offset time.Duration) block.Block {
	t.Helper()
	conf := 0.4
	b, err := g.InsertBlock(context.Background(), block.Block{
		ID:        id,
		ProjectID: pid,
		CreatorID: "u1",
		Type:      block.TypeQuestion,
		Content:   "Why " + id.String() + "?",
		Metadata:  block.Metadata{Tags: []string{"why"}, Confidence: &conf},
		Position:  shared.Position{X: 1, Y: 2},
		CreatedAt: base.Add(offset),
		UpdatedAt: base.Add(offset),
	})
	require.NoError(t, err)
	return b
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	older, err := g.CreateProject(ctx, project.Project{OwnerID: "u1", Title: "Older", UpdatedAt: base})
	require.NoError(t, err)
	newer, err := g.CreateProject(ctx, project.Project{
		OwnerID:   "u1",
		Title:     "Newer",
		Metadata:  project.Metadata{Tags: []string{"ml"}, WorkMode: project.ModeSynthesis},
		UpdatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = g.CreateProject(ctx, project.Project{OwnerID: "u2", Title: "Other"})
	require.NoError(t, err)

	list, err := g.ListProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.Equal(t, project.ModeSynthesis, list[0].Metadata.WorkMode)

	t.Run("Update", func(t *testing.T) {
		older.Title = "Renamed"
		out, err := g.UpdateProject(ctx, older)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", out.Title)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		_, err := g.UpdateProject(ctx, project.Project{ID: "nope", Title: "x"})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("DuplicateID", func(t *testing.T) {
		_, err := g.CreateProject(ctx, project.Project{ID: newer.ID, OwnerID: "u1", Title: "Again"})
		assert.True(t, errors.HasCode(err, errors.CodeDuplicateRecord))
	})
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	p, err := g.CreateProject(ctx, project.Project{OwnerID: "u1", Title: "Doomed"})
	require.NoError(t, err)
	a := seedBlock(t, g, p.ID, "a", 0)
	b := seedBlock(t, g, p.ID, "b", time.Minute)
	_, err = g.InsertRelationship(ctx, relationship.Relationship{ProjectID: p.ID, SourceBlockID: a.ID, TargetBlockID: b.ID, Type: relationship.TypeSupports})
	require.NoError(t, err)
	_, err = g.InsertBlockVersion(ctx, block.Version{BlockID: a.ID, Version: 1, Content: "old"})
	require.NoError(t, err)
	_, err = g.InsertExport(ctx, project.Export{ProjectID: p.ID, Format: "markdown", Content: "# Doomed"})
	require.NoError(t, err)

	require.NoError(t, g.DeleteProject(ctx, p.ID))

	blocks, err := g.ListBlocks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, blocks)
	versions, err := g.ListBlockVersions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
	exports, err := g.ListExports(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, exports)

	assert.True(t, errors.IsNotFound(g.DeleteProject(ctx, p.ID)))
}

func TestBlocks(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	first := seedBlock(t, g, "p1", "b1", 0)
	seedBlock(t, g, "p1", "b2", time.Minute)
	seedBlock(t, g, "p2", "b3", 0)

	t.Run("ListNewestFirst", func(t *testing.T) {
		blocks, err := g.ListBlocks(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, blocks, 2)
		assert.Equal(t, shared.BlockID("b2"), blocks[0].ID)
		assert.Equal(t, shared.BlockID("b1"), blocks[1].ID)
		assert.Equal(t, []string{"why"}, blocks[1].Tags())
		require.NotNil(t, blocks[1].Metadata.Confidence)
		assert.InDelta(t, 0.4, *blocks[1].Metadata.Confidence, 1e-9)
		assert.Equal(t, shared.Position{X: 1, Y: 2}, blocks[1].Position)
		assert.Equal(t, block.InitialVersion, blocks[1].Version)
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		next := first
		next.Content = "Updated"
		next.Version = 2

		out, err := g.UpdateBlock(ctx, next, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Version)
		assert.Equal(t, "Updated", out.Content)

		stale := first
		stale.Version = 2
		_, err = g.UpdateBlock(ctx, stale, 1)
		require.Error(t, err)
		assert.True(t, errors.IsVersionConflict(err))
		assert.Contains(t, err.Error(), "found 2")
	})

	t.Run("Unconditional", func(t *testing.T) {
		next := first
		next.Content = "Forced"
		next.Version = 9
		out, err := g.UpdateBlock(ctx, next, 0)
		require.NoError(t, err)
		assert.Equal(t, 9, out.Version)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		_, err := g.UpdateBlock(ctx, block.Block{ID: "ghost", ProjectID: "p1", Version: 2}, 1)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("WrongProjectIsMissing", func(t *testing.T) {
		err := g.DeleteBlock(ctx, "p2", "b1")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, g.DeleteBlock(ctx, "p1", "b2"))
		assert.True(t, errors.IsNotFound(g.DeleteBlock(ctx, "p1", "b2")))
	})
}

func TestRelationships(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	seedBlock(t, g, "p1", "a", 0)
	seedBlock(t, g, "p1", "b", 0)
	seedBlock(t, g, "p1", "c", 0)
	seedBlock(t, g, "p2", "foreign", 0)

	mk := func(src, dst shared.BlockID, at time.Duration) relationship.Relationship {
		r, err := g.InsertRelationship(ctx, relationship.Relationship{
			ProjectID:     "p1",
			SourceBlockID: src,
			TargetBlockID: dst,
			Type:          relationship.TypeCauses,
			CreatedAt:     base.Add(at),
		})
		require.NoError(t, err)
		return r
	}
	ab := mk("a", "b", 0)
	bc := mk("b", "c", time.Minute)
	ca := mk("c", "a", 2*time.Minute)
	assert.Equal(t, relationship.DefaultStrength, ab.Strength)

	t.Run("EndpointInAnotherProject", func(t *testing.T) {
		_, err := g.InsertRelationship(ctx, relationship.Relationship{
			ProjectID: "p1", SourceBlockID: "a", TargetBlockID: "foreign", Type: relationship.TypeCauses,
		})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("ListOldestFirst", func(t *testing.T) {
		rels, err := g.ListRelationships(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, rels, 3)
		assert.Equal(t, []shared.RelationshipID{ab.ID, bc.ID, ca.ID}, []shared.RelationshipID{rels[0].ID, rels[1].ID, rels[2].ID})
	})

	t.Run("DeleteForBlock", func(t *testing.T) {
		ids, err := g.DeleteRelationshipsForBlock(ctx, "p1", "a")
		require.NoError(t, err)
		assert.Equal(t, []shared.RelationshipID{ab.ID, ca.ID}, ids)

		rels, err := g.ListRelationships(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, bc.ID, rels[0].ID)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		assert.True(t, errors.IsNotFound(g.DeleteRelationship(ctx, "p1", ab.ID)))
		require.NoError(t, g.DeleteRelationship(ctx, "p1", bc.ID))
	})
}

func TestVersionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	for v := 1; v <= 3; v++ {
		_, err := g.InsertBlockVersion(ctx, block.Version{BlockID: "b1", Version: v, Content: "v"})
		require.NoError(t, err)
	}
	_, err := g.InsertBlockVersion(ctx, block.Version{BlockID: "b1", Version: 2, Content: "dup"})
	assert.True(t, errors.HasCode(err, errors.CodeDuplicateRecord))

	versions, err := g.ListBlockVersions(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version)
	assert.Equal(t, block.DefaultChangeSummary, versions[0].ChangeSummary)
}

func TestInteractions(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t)

	_, err := g.InsertInteraction(ctx, project.Interaction{ProjectID: "p1", UserID: "u1", Persona: "scholar", Prompt: "q1", Response: "a1", CreatedAt: base})
	require.NoError(t, err)
	_, err = g.InsertInteraction(ctx, project.Interaction{ProjectID: "p1", UserID: "u1", Persona: "critic", Prompt: "q2", Response: "a2", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)

	list, err := g.ListInteractions(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "q2", list[0].Prompt)
	assert.Equal(t, "critic", list[0].Persona)
}

func TestPing(t *testing.T) {
	g := newTestGateway(t)
	assert.NoError(t, g.Ping(context.Background()))
}

func TestReviseBlock(t *testing.T) {
	ctx := context.Background()
	revise := func(t *testing.T, b block.Block, content string) (block.Block, block.Version) {
		t.Helper()
		next, prior, err := b.Apply(block.Patch{Content: &content}, "u1", base.Add(time.Hour))
		require.NoError(t, err)
		return next, prior
	}

	t.Run("SwapsAndArchives", func(t *testing.T) {
		g := newTestGateway(t)
		b := seedBlock(t, g, "p1", "b1", 0)
		next, prior := revise(t, b, "Sharper")

		out, err := g.ReviseBlock(ctx, next, prior)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Version)
		assert.Equal(t, "Sharper", out.Content)

		versions, err := g.ListBlockVersions(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, "Why b1?", versions[0].Content)
	})

	t.Run("StaleVersionReportsStoredVersion", func(t *testing.T) {
		g := newTestGateway(t)
		b := seedBlock(t, g, "p1", "b1", 0)
		next, prior := revise(t, b, "first")
		_, err := g.ReviseBlock(ctx, next, prior)
		require.NoError(t, err)

		again, _ := revise(t, b, "second")
		_, err = g.ReviseBlock(ctx, again, block.Version{BlockID: "b1", Version: 3, Content: "x"})
		assert.True(t, errors.IsVersionConflict(err))
		assert.Contains(t, err.Error(), "found 2")

		versions, err := g.ListBlockVersions(ctx, "b1")
		require.NoError(t, err)
		assert.Len(t, versions, 1)
	})

	t.Run("MissingBlock", func(t *testing.T) {
		g := newTestGateway(t)
		_, err := g.ReviseBlock(ctx, block.Block{ID: "ghost", ProjectID: "p1", Content: "x", Version: 2},
			block.Version{BlockID: "ghost", Version: 1})
		assert.True(t, errors.IsNotFound(err))

		versions, err := g.ListBlockVersions(ctx, "ghost")
		require.NoError(t, err)
		assert.Empty(t, versions)
	})

	t.Run("FailedArchiveRollsBackSwap", func(t *testing.T) {
		g := newTestGateway(t)
		b := seedBlock(t, g, "p1", "b1", 0)

		var failNext atomic.Bool
		failNext.Store(true)
		require.NoError(t, g.db.Callback().Create().Before("gorm:create").Register("test:fail_archive", func(db *gorm.DB) {
			if db.Statement.Table == gateway.TableVersions && failNext.CompareAndSwap(true, false) {
				_ = db.AddError(stderrors.New("disk full"))
			}
		}))

		next, prior := revise(t, b, "lost")
		_, err := g.ReviseBlock(ctx, next, prior)
		assert.True(t, errors.IsGatewayFailure(err))

		blocks, err := g.ListBlocks(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, 1, blocks[0].Version)
		assert.Equal(t, "Why b1?", blocks[0].Content)
		versions, err := g.ListBlockVersions(ctx, "b1")
		require.NoError(t, err)
		assert.Empty(t, versions)

		next, prior = revise(t, b, "kept")
		out, err := g.ReviseBlock(ctx, next, prior)
		require.NoError(t, err)
		assert.Equal(t, 2, out.Version)

		versions, err = g.ListBlockVersions(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].Version)
	})
}

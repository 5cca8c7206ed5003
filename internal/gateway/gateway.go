// Package gateway defines the persistence contract for projects and their
// graphs, plus decorators that add retries, circuit breaking and metrics to
// any backend.
//
// Backends live in subpackages: memory, supabase, dynamo and sqlstore.
// Every backend must report failures through the errors package:
// NotFound for missing records, VersionConflict for a failed
// compare-and-swap, and GatewayFailure for everything else.
package gateway

import (
	"context"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// Table names shared by the relational backends.
const (
	TableProjects      = "projects"
	TableBlocks        = "knowledge_blocks"
	TableRelationships = "block_relationships"
	TableVersions      = "block_versions"
	TableInteractions  = "ai_interactions"
	TableExports       = "exports"
)

// Projects stores project containers.
type Projects interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	// ListProjects returns the owner's projects, most recently updated first.
	ListProjects(ctx context.Context, owner shared.UserID) ([]project.Project, error)
	GetProject(ctx context.Context, id shared.ProjectID) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	// DeleteProject removes the project and everything scoped to it.
	DeleteProject(ctx context.Context, id shared.ProjectID) error
}

// Blocks stores knowledge blocks.
type Blocks interface {
	InsertBlock(ctx context.Context, b block.Block) (block.Block, error)
	// ListBlocks returns the project's blocks, newest first.
	ListBlocks(ctx context.Context, projectID shared.ProjectID) ([]block.Block, error)
	// UpdateBlock replaces the stored block. When expectedVersion > 0 the
	// write only succeeds if the stored version equals it.
	UpdateBlock(ctx context.Context, b block.Block, expectedVersion int) (block.Block, error)
	// ReviseBlock replaces the stored block only if it is still at
	// prior.Version and archives prior with it. Both writes land or
	// neither does.
	ReviseBlock(ctx context.Context, b block.Block, prior block.Version) (block.Block, error)
	DeleteBlock(ctx context.Context, projectID shared.ProjectID, id shared.BlockID) error
}

// Relationships stores directed block relationships.
type Relationships interface {
	InsertRelationship(ctx context.Context, r relationship.Relationship) (relationship.Relationship, error)
	ListRelationships(ctx context.Context, projectID shared.ProjectID) ([]relationship.Relationship, error)
	DeleteRelationship(ctx context.Context, projectID shared.ProjectID, id shared.RelationshipID) error
	// DeleteRelationshipsForBlock removes every relationship touching the
	// block and returns the removed ids.
	DeleteRelationshipsForBlock(ctx context.Context, projectID shared.ProjectID, blockID shared.BlockID) ([]shared.RelationshipID, error)
}

// Versions stores the append-only block history.
type Versions interface {
	InsertBlockVersion(ctx context.Context, v block.Version) (block.Version, error)
	// ListBlockVersions returns the block's history, newest version first.
	ListBlockVersions(ctx context.Context, blockID shared.BlockID) ([]block.Version, error)
}

// Archive stores persona interactions and rendered exports.
type Archive interface {
	InsertInteraction(ctx context.Context, i project.Interaction) (project.Interaction, error)
	ListInteractions(ctx context.Context, projectID shared.ProjectID) ([]project.Interaction, error)
	InsertExport(ctx context.Context, e project.Export) (project.Export, error)
	ListExports(ctx context.Context, projectID shared.ProjectID) ([]project.Export, error)
}

// Gateway is the full persistence contract.
type Gateway interface {
	Projects
	Blocks
	Relationships
	Versions
	Archive
	Ping(ctx context.Context) error
}

// Failure wraps a backend error as a GatewayFailure unless it is already
// classified.
func Failure(err error, operation, table string) error {
	if err == nil {
		return nil
	}
	return errors.Gateway(err, operation, table)
}

// Conflict reports a failed compare-and-swap on a block.
func Conflict(id shared.BlockID, expected, actual int) error {
	return shared.VersionConflict(id, expected, actual)
}

// ErrDuplicate is returned when an insert reuses an existing id.
var ErrDuplicate = errors.Conflict(errors.CodeDuplicateRecord.String(), "record already exists").Build()

// Duplicate annotates ErrDuplicate with the table and id.
func Duplicate(table, id string) error {
	return errors.From(ErrDuplicate).WithResource(table).WithDetailsf("%s %s", table, id).Build()
}

package dynamo

import (
	"fmt"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Single-table layout. Everything scoped to a project shares its partition;
// version history is partitioned by block so it can be read newest first.
//
//	project       PK=PROJECT#<id>   SK=PROJECT          GSI1PK=OWNER#<owner> GSI1SK=<updated_at>
//	block         PK=PROJECT#<pid>  SK=BLOCK#<id>
//	relationship  PK=PROJECT#<pid>  SK=REL#<id>
//	interaction   PK=PROJECT#<pid>  SK=INTERACTION#<created_at>#<id>
//	export        PK=PROJECT#<pid>  SK=EXPORT#<created_at>#<id>
//	version       PK=BLOCK#<bid>    SK=VERSION#<version, zero padded>
const (
	prefixProject     = "PROJECT#"
	prefixOwner       = "OWNER#"
	prefixBlock       = "BLOCK#"
	prefixRel         = "REL#"
	prefixInteraction = "INTERACTION#"
	prefixExport      = "EXPORT#"
	prefixVersion     = "VERSION#"
	skProject         = "PROJECT"
)

// Entity type tags stored with each item.
const (
	entityProject      = "PROJECT"
	entityBlock        = "BLOCK"
	entityRelationship = "RELATIONSHIP"
	entityVersion      = "VERSION"
	entityInteraction  = "INTERACTION"
	entityExport       = "EXPORT"
)

func projectPK(id shared.ProjectID) string { return prefixProject + id.String() }
func blockSK(id shared.BlockID) string { return prefixBlock + id.String() }
func relSK(id shared.RelationshipID) string { return prefixRel + id.String() }
func versionPK(id shared.BlockID) string { return prefixBlock + id.String() }
func versionSK(v int) string { return fmt.Sprintf("%s%010d", prefixVersion, v) }
func sortableTime(t time.Time) string { return t.UTC().Format("2006-01-02T15:04:05.000000000Z") }

type key struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

type projectItem struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	EntityType  string    `dynamodbav:"EntityType"`
	GSI1PK      string    `dynamodbav:"GSI1PK"`
	GSI1SK      string    `dynamodbav:"GSI1SK"`
	ProjectID   string    `dynamodbav:"ProjectID"`
	OwnerID     string    `dynamodbav:"OwnerID"`
	Title       string    `dynamodbav:"Title"`
	Description string    `dynamodbav:"Description,omitempty"`
	Tags        []string  `dynamodbav:"Tags,omitempty"`
	Category    string    `dynamodbav:"Category,omitempty"`
	WorkMode    string    `dynamodbav:"WorkMode,omitempty"`
	CreatedAt   time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time `dynamodbav:"UpdatedAt"`
}

func toProjectItem(p project.Project) projectItem {
	return projectItem{
		PK:          projectPK(p.ID),
		SK:          skProject,
		EntityType:  entityProject,
		GSI1PK:      prefixOwner + p.OwnerID.String(),
		GSI1SK:      sortableTime(p.UpdatedAt),
		ProjectID:   p.ID.String(),
		OwnerID:     p.OwnerID.String(),
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Metadata.Tags,
		Category:    p.Metadata.Category,
		WorkMode:    string(p.Metadata.WorkMode),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (it projectItem) toDomain() project.Project {
	return project.Project{
		ID:          shared.ProjectID(it.ProjectID),
		OwnerID:     shared.UserID(it.OwnerID),
		Title:       it.Title,
		Description: it.Description,
		Metadata: project.Metadata{
			Tags:     it.Tags,
			Category: it.Category,
			WorkMode: project.WorkMode(it.WorkMode),
		},
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

type blockItem struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	EntityType string    `dynamodbav:"EntityType"`
	BlockID    string    `dynamodbav:"BlockID"`
	ProjectID  string    `dynamodbav:"ProjectID"`
	CreatorID  string    `dynamodbav:"CreatorID"`
	Type       string    `dynamodbav:"Type"`
	Content    string    `dynamodbav:"Content"`
	Tags       []string  `dynamodbav:"Tags,omitempty"`
	Sources    []string  `dynamodbav:"Sources,omitempty"`
	Confidence *float64  `dynamodbav:"Confidence,omitempty"`
	X          float64   `dynamodbav:"X"`
	Y          float64   `dynamodbav:"Y"`
	Version    int       `dynamodbav:"Version"`
	CreatedAt  time.Time `dynamodbav:"CreatedAt"`
	UpdatedAt  time.Time `dynamodbav:"UpdatedAt"`
}

func toBlockItem(b block.Block) blockItem {
	return blockItem{
		PK:         projectPK(b.ProjectID),
		SK:         blockSK(b.ID),
		EntityType: entityBlock,
		BlockID:    b.ID.String(),
		ProjectID:  b.ProjectID.String(),
		CreatorID:  b.CreatorID.String(),
		Type:       b.Type.String(),
		Content:    b.Content,
		Tags:       b.Metadata.Tags,
		Sources:    b.Metadata.Sources,
		Confidence: b.Metadata.Confidence,
		X:          b.Position.X,
		Y:          b.Position.Y,
		Version:    b.Version,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func (it blockItem) toDomain() block.Block {
	return block.Block{
		ID:        shared.BlockID(it.BlockID),
		ProjectID: shared.ProjectID(it.ProjectID),
		CreatorID: shared.UserID(it.CreatorID),
		Type:      block.Type(it.Type),
		Content:   it.Content,
		Metadata: block.Metadata{
			Tags:       it.Tags,
			Sources:    it.Sources,
			Confidence: it.Confidence,
		},
		Position:  shared.Position{X: it.X, Y: it.Y},
		Version:   it.Version,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

type relationshipItem struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	EntityType     string    `dynamodbav:"EntityType"`
	RelationshipID string    `dynamodbav:"RelationshipID"`
	ProjectID      string    `dynamodbav:"ProjectID"`
	SourceID       string    `dynamodbav:"SourceID"`
	TargetID       string    `dynamodbav:"TargetID"`
	Type           string    `dynamodbav:"Type"`
	Strength       float64   `dynamodbav:"Strength"`
	Notes          string    `dynamodbav:"Notes,omitempty"`
	CreatedAt      time.Time `dynamodbav:"CreatedAt"`
}

func toRelationshipItem(r relationship.Relationship) relationshipItem {
	return relationshipItem{
		PK:             projectPK(r.ProjectID),
		SK:             relSK(r.ID),
		EntityType:     entityRelationship,
		RelationshipID: r.ID.String(),
		ProjectID:      r.ProjectID.String(),
		SourceID:       r.SourceBlockID.String(),
		TargetID:       r.TargetBlockID.String(),
		Type:           r.Type.String(),
		Strength:       r.Strength,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt,
	}
}

func (it relationshipItem) toDomain() relationship.Relationship {
	return relationship.Relationship{
		ID:            shared.RelationshipID(it.RelationshipID),
		ProjectID:     shared.ProjectID(it.ProjectID),
		SourceBlockID: shared.BlockID(it.SourceID),
		TargetBlockID: shared.BlockID(it.TargetID),
		Type:          relationship.Type(it.Type),
		Strength:      it.Strength,
		Notes:         it.Notes,
		CreatedAt:     it.CreatedAt,
	}
}

type versionItem struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	EntityType    string    `dynamodbav:"EntityType"`
	VersionID     string    `dynamodbav:"VersionID"`
	BlockID       string    `dynamodbav:"BlockID"`
	Version       int       `dynamodbav:"Version"`
	Content       string    `dynamodbav:"Content"`
	ChangeSummary string    `dynamodbav:"ChangeSummary"`
	ChangedBy     string    `dynamodbav:"ChangedBy"`
	CreatedAt     time.Time `dynamodbav:"CreatedAt"`
}

func toVersionItem(v block.Version) versionItem {
	return versionItem{
		PK:            versionPK(v.BlockID),
		SK:            versionSK(v.Version),
		EntityType:    entityVersion,
		VersionID:     v.ID,
		BlockID:       v.BlockID.String(),
		Version:       v.Version,
		Content:       v.Content,
		ChangeSummary: v.ChangeSummary,
		ChangedBy:     v.ChangedBy.String(),
		CreatedAt:     v.CreatedAt,
	}
}

func (it versionItem) toDomain() block.Version {
	return block.Version{
		ID:            it.VersionID,
		BlockID:       shared.BlockID(it.BlockID),
		Version:       it.Version,
		Content:       it.Content,
		ChangeSummary: it.ChangeSummary,
		ChangedBy:     shared.UserID(it.ChangedBy),
		CreatedAt:     it.CreatedAt,
	}
}

type interactionItem struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	EntityType    string    `dynamodbav:"EntityType"`
	InteractionID string    `dynamodbav:"InteractionID"`
	ProjectID     string    `dynamodbav:"ProjectID"`
	UserID        string    `dynamodbav:"UserID"`
	Persona       string    `dynamodbav:"Persona"`
	Prompt        string    `dynamodbav:"Prompt"`
	Response      string    `dynamodbav:"Response"`
	CreatedAt     time.Time `dynamodbav:"CreatedAt"`
}

func toInteractionItem(i project.Interaction) interactionItem {
	return interactionItem{
		PK:            projectPK(i.ProjectID),
		SK:            prefixInteraction + sortableTime(i.CreatedAt) + "#" + i.ID,
		EntityType:    entityInteraction,
		InteractionID: i.ID,
		ProjectID:     i.ProjectID.String(),
		UserID:        i.UserID.String(),
		Persona:       i.Persona,
		Prompt:        i.Prompt,
		Response:      i.Response,
		CreatedAt:     i.CreatedAt,
	}
}

func (it interactionItem) toDomain() project.Interaction {
	return project.Interaction{
		ID:        it.InteractionID,
		ProjectID: shared.ProjectID(it.ProjectID),
		UserID:    shared.UserID(it.UserID),
		Persona:   it.Persona,
		Prompt:    it.Prompt,
		Response:  it.Response,
		CreatedAt: it.CreatedAt,
	}
}

type exportItem struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	EntityType string    `dynamodbav:"EntityType"`
	ExportID   string    `dynamodbav:"ExportID"`
	ProjectID  string    `dynamodbav:"ProjectID"`
	CreatorID  string    `dynamodbav:"CreatorID"`
	Format     string    `dynamodbav:"Format"`
	Audience   string    `dynamodbav:"Audience"`
	Content    string    `dynamodbav:"Content"`
	CreatedAt  time.Time `dynamodbav:"CreatedAt"`
}

func toExportItem(e project.Export) exportItem {
	return exportItem{
		PK:         projectPK(e.ProjectID),
		SK:         prefixExport + sortableTime(e.CreatedAt) + "#" + e.ID,
		EntityType: entityExport,
		ExportID:   e.ID,
		ProjectID:  e.ProjectID.String(),
		CreatorID:  e.CreatorID.String(),
		Format:     e.Format,
		Audience:   e.Audience,
		Content:    e.Content,
		CreatedAt:  e.CreatedAt,
	}
}

func (it exportItem) toDomain() project.Export {
	return project.Export{
		ID:        it.ExportID,
		ProjectID: shared.ProjectID(it.ProjectID),
		CreatorID: shared.UserID(it.CreatorID),
		Format:    it.Format,
		Audience:  it.Audience,
		Content:   it.Content,
		CreatedAt: it.CreatedAt,
	}
}

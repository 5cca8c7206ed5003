package sqlstore

import (
	"time"

	"gorm.io/datatypes"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/project"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
)

type projectModel struct {
	ID          string                              `gorm:"primaryKey;column:id"`
	OwnerID     string                              `gorm:"column:owner_id;index;not null"`
	Title       string                              `gorm:"column:title;not null"`
	Description string                              `gorm:"column:description"`
	Metadata    datatypes.JSONType[project.Metadata] `gorm:"column:metadata"`
	CreatedAt   time.Time                           `gorm:"column:created_at"`
	UpdatedAt   time.Time                           `gorm:"column:updated_at;index"`
}

func (projectModel) TableName() string { return gateway.TableProjects }

func toProjectModel(p project.Project) projectModel {
	return projectModel{
		ID:          p.ID.String(),
		OwnerID:     p.OwnerID.String(),
		Title:       p.Title,
		Description: p.Description,
		Metadata:    datatypes.NewJSONType(p.Metadata),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (m projectModel) toDomain() project.Project {
	return project.Project{
		ID:          shared.ProjectID(m.ID),
		OwnerID:     shared.UserID(m.OwnerID),
		Title:       m.Title,
		Description: m.Description,
		Metadata:    m.Metadata.Data(),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

type blockModel struct {
	ID        string                              `gorm:"primaryKey;column:id"`
	ProjectID string                              `gorm:"column:project_id;index;not null"`
	CreatorID string                              `gorm:"column:creator_id"`
	Type      string                              `gorm:"column:block_type;not null"`
	Content   string                              `gorm:"column:content"`
	Metadata  datatypes.JSONType[block.Metadata]  `gorm:"column:metadata"`
	Position  datatypes.JSONType[shared.Position] `gorm:"column:position"`
	Version   int                                 `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time                           `gorm:"column:created_at;index"`
	UpdatedAt time.Time                           `gorm:"column:updated_at"`
}

func (blockModel) TableName() string { return gateway.TableBlocks }

func toBlockModel(b block.Block) blockModel {
	return blockModel{
		ID:        b.ID.String(),
		ProjectID: b.ProjectID.String(),
		CreatorID: b.CreatorID.String(),
		Type:      string(b.Type),
		Content:   b.Content,
		Metadata:  datatypes.NewJSONType(b.Metadata),
		Position:  datatypes.NewJSONType(b.Position),
		Version:   b.Version,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func (m blockModel) toDomain() block.Block {
	return block.Block{
		ID:        shared.BlockID(m.ID),
		ProjectID: shared.ProjectID(m.ProjectID),
		CreatorID: shared.UserID(m.CreatorID),
		Type:      block.Type(m.Type),
		Content:   m.Content,
		Metadata:  m.Metadata.Data(),
		Position:  m.Position.Data(),
		Version:   m.Version,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type relationshipModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	ProjectID     string    `gorm:"column:project_id;index;not null"`
	SourceBlockID string    `gorm:"column:source_block_id;index;not null"`
	TargetBlockID string    `gorm:"column:target_block_id;index;not null"`
	Type          string    `gorm:"column:relationship_type;not null"`
	Strength      float64   `gorm:"column:strength"`
	Notes         string    `gorm:"column:notes"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (relationshipModel) TableName() string { return gateway.TableRelationships }

func toRelationshipModel(r relationship.Relationship) relationshipModel {
	return relationshipModel{
		ID:            r.ID.String(),
		ProjectID:     r.ProjectID.String(),
		SourceBlockID: r.SourceBlockID.String(),
		TargetBlockID: r.TargetBlockID.String(),
		Type:          string(r.Type),
		Strength:      r.Strength,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (m relationshipModel) toDomain() relationship.Relationship {
	return relationship.Relationship{
		ID:            shared.RelationshipID(m.ID),
		ProjectID:     shared.ProjectID(m.ProjectID),
		SourceBlockID: shared.BlockID(m.SourceBlockID),
		TargetBlockID: shared.BlockID(m.TargetBlockID),
		Type:          relationship.Type(m.Type),
		Strength:      m.Strength,
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type versionModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	BlockID       string    `gorm:"column:block_id;uniqueIndex:idx_block_version;not null"`
	Version       int       `gorm:"column:version;uniqueIndex:idx_block_version;not null"`
	Content       string    `gorm:"column:content"`
	ChangeSummary string    `gorm:"column:change_summary"`
	ChangedBy     string    `gorm:"column:changed_by"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (versionModel) TableName() string { return gateway.TableVersions }

func toVersionModel(v block.Version) versionModel {
	return versionModel{
		ID:            v.ID,
		BlockID:       v.BlockID.String(),
		Version:       v.Version,
		Content:       v.Content,
		ChangeSummary: v.ChangeSummary,
		ChangedBy:     v.ChangedBy.String(),
		CreatedAt:     v.CreatedAt.UTC(),
	}
}

func (m versionModel) toDomain() block.Version {
	return block.Version{
		ID:            m.ID,
		BlockID:       shared.BlockID(m.BlockID),
		Version:       m.Version,
		Content:       m.Content,
		ChangeSummary: m.ChangeSummary,
		ChangedBy:     shared.UserID(m.ChangedBy),
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type interactionModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ProjectID string    `gorm:"column:project_id;index;not null"`
	UserID    string    `gorm:"column:user_id"`
	Persona   string    `gorm:"column:persona"`
	Prompt    string    `gorm:"column:prompt"`
	Response  string    `gorm:"column:response"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (interactionModel) TableName() string { return gateway.TableInteractions }

func toInteractionModel(i project.Interaction) interactionModel {
	return interactionModel{
		ID:        i.ID,
		ProjectID: i.ProjectID.String(),
		UserID:    i.UserID.String(),
		Persona:   i.Persona,
		Prompt:    i.Prompt,
		Response:  i.Response,
		CreatedAt: i.CreatedAt.UTC(),
	}
}

func (m interactionModel) toDomain() project.Interaction {
	return project.Interaction{
		ID:        m.ID,
		ProjectID: shared.ProjectID(m.ProjectID),
		UserID:    shared.UserID(m.UserID),
		Persona:   m.Persona,
		Prompt:    m.Prompt,
		Response:  m.Response,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type exportModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ProjectID string    `gorm:"column:project_id;index;not null"`
	CreatorID string    `gorm:"column:creator_id"`
	Format    string    `gorm:"column:format"`
	Audience  string    `gorm:"column:audience"`
	Content   string    `gorm:"column:content"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (exportModel) TableName() string { return gateway.TableExports }

func toExportModel(e project.Export) exportModel {
	return exportModel{
		ID:        e.ID,
		ProjectID: e.ProjectID.String(),
		CreatorID: e.CreatorID.String(),
		Format:    e.Format,
		Audience:  e.Audience,
		Content:   e.Content,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func (m exportModel) toDomain() project.Export {
	return project.Export{
		ID:        m.ID,
		ProjectID: shared.ProjectID(m.ProjectID),
		CreatorID: shared.UserID(m.CreatorID),
		Format:    m.Format,
		Audience:  m.Audience,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// models lists every table AutoMigrate manages.
func models() []any {
	return []any{
		&projectModel{},
		&blockModel{},
		&relationshipModel{},
		&versionModel{},
		&interactionModel{},
		&exportModel{},
	}
}

// Package relationship defines the directed, typed links between knowledge blocks.
package relationship

import (
	"strings"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Type describes how the source block bears on the target block.
type Type string

const (
	TypeSupports    Type = "supports"
	TypeContradicts Type = "contradicts"
	TypeCauses      Type = "causes"
	TypeRequires    Type = "requires"
	TypeElaborates  Type = "elaborates"
)

// DefaultStrength is assigned when the creator gives no weight.
const DefaultStrength = 1.0

// Types lists every relationship type.
func Types() []Type {
	return []Type{TypeSupports, TypeContradicts, TypeCauses, TypeRequires, TypeElaborates}
}

// ParseType validates a relationship type tag.
func ParseType(s string) (Type, error) {
	t := Type(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", shared.ErrInvalidRelationshipType
	}
	return t, nil
}

// IsValid reports whether t is one of the fixed relationship types.
func (t Type) IsValid() bool {
	switch t {
	case TypeSupports, TypeContradicts, TypeCauses, TypeRequires, TypeElaborates:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Relationship is a directed edge. Several relationships may join the same
// pair of blocks, and cycles are allowed.
type Relationship struct {
	ID            shared.RelationshipID `json:"id"`
	ProjectID     shared.ProjectID      `json:"project_id"`
	SourceBlockID shared.BlockID        `json:"source_block_id"`
	TargetBlockID shared.BlockID        `json:"target_block_id"`
	Type          Type                  `json:"relationship_type"`
	Strength      float64               `json:"strength"`
	Notes         string                `json:"notes,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// New builds a relationship with the default strength. Endpoint existence is
// the caller's concern; New only rejects self-loops and unknown types.
func New(projectID shared.ProjectID, source, target shared.BlockID, t Type, now time.Time) (Relationship, error) {
	if !t.IsValid() {
		return Relationship{}, shared.ErrInvalidRelationshipType
	}
	if source == target {
		return Relationship{}, shared.ErrSelfRelationship
	}
	return Relationship{
		ID:            shared.NewRelationshipID(),
		ProjectID:     projectID,
		SourceBlockID: source,
		TargetBlockID: target,
		Type:          t,
		Strength:      DefaultStrength,
		CreatedAt:     now,
	}, nil
}

// Touches reports whether id is either endpoint.
func (r Relationship) Touches(id shared.BlockID) bool {
	return r.SourceBlockID == id || r.TargetBlockID == id
}

package canvas

import (
	"github.com/wuzhiguocarter/Aletheia/internal/domain/block"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/relationship"
	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Anchor is the offset from a block's position to where edges attach.
var Anchor = shared.Position{X: 160, Y: 80}

// Edge is a relationship laid out in canvas space. The arrowhead sits at To.
type Edge struct {
	RelationshipID shared.RelationshipID `json:"relationship_id"`
	Type           relationship.Type     `json:"relationship_type"`
	From           shared.Position       `json:"from"`
	To             shared.Position       `json:"to"`
	Dashed         bool                  `json:"dashed"`
}

// Edges lays out every relationship whose endpoints are both present in
// blocks, in relationship order.
func Edges(blocks []block.Block, rels []relationship.Relationship) []Edge {
	positions := make(map[shared.BlockID]shared.Position, len(blocks))
	for _, b := range blocks {
		if _, ok := positions[b.ID]; !ok {
			positions[b.ID] = b.Position
		}
	}

	edges := make([]Edge, 0, len(rels))
	for _, r := range rels {
		src, ok := positions[r.SourceBlockID]
		if !ok {
			continue
		}
		dst, ok := positions[r.TargetBlockID]
		if !ok {
			continue
		}
		edges = append(edges, Edge{
			RelationshipID: r.ID,
			Type:           r.Type,
			From:           src.Add(Anchor),
			To:             dst.Add(Anchor),
			Dashed:         r.Type == relationship.TypeContradicts,
		})
	}
	return edges
}

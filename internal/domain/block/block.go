// Package block defines the knowledge block, the typed note that makes up a
// project's graph, together with its append-only version history.
package block

import (
	"strings"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// Type classifies what a block contributes to an argument.
type Type string

const (
	TypeArgument   Type = "argument"
	TypeEvidence   Type = "evidence"
	TypeQuote      Type = "quote"
	TypeHypothesis Type = "hypothesis"
	TypeData       Type = "data"
	TypeQuestion   Type = "question"
)

// Types lists every block type in palette order.
func Types() []Type {
	return []Type{TypeArgument, TypeEvidence, TypeQuote, TypeHypothesis, TypeData, TypeQuestion}
}

// ParseType validates a block type tag.
func ParseType(s string) (Type, error) {
	t := Type(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", shared.ErrInvalidBlockType
	}
	return t, nil
}

// IsValid reports whether t is one of the fixed block types.
func (t Type) IsValid() bool {
	switch t {
	case TypeArgument, TypeEvidence, TypeQuote, TypeHypothesis, TypeData, TypeQuestion:
		return true
	}
	return false
}

// Label is the type name with its first letter upper-cased.
func (t Type) Label() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

func (t Type) String() string { return string(t) }

// InitialVersion is the version of a freshly created block.
const InitialVersion = 1

// PlaceholderContent is the body given to blocks placed on the canvas.
const PlaceholderContent = "New block - click to edit"

// Metadata carries auxiliary block fields. Only Tags is read by derived views.
type Metadata struct {
	Tags       []string `json:"tags,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Tags:    shared.CopyStrings(m.Tags),
		Sources: shared.CopyStrings(m.Sources),
	}
	if m.Confidence != nil {
		c := *m.Confidence
		out.Confidence = &c
	}
	return out
}

// Validate normalizes tags in place and checks tag lengths and the
// confidence range.
func (m *Metadata) Validate() error {
	tags, err := shared.NormalizeTags(m.Tags)
	if err != nil {
		return err
	}
	m.Tags = tags
	if m.Confidence != nil && (*m.Confidence < 0 || *m.Confidence > 1) {
		return shared.ErrInvalidConfidence
	}
	return nil
}

// Block is a single typed note on a project canvas.
type Block struct {
	ID        shared.BlockID   `json:"id"`
	ProjectID shared.ProjectID `json:"project_id"`
	CreatorID shared.UserID    `json:"creator_id"`
	Type      Type             `json:"block_type"`
	Content   string           `json:"content"`
	Metadata  Metadata         `json:"metadata"`
	Position  shared.Position  `json:"position"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// New creates a placeholder block of type t at pos.
func New(projectID shared.ProjectID, creatorID shared.UserID, t Type, pos shared.Position, now time.Time) (Block, error) {
	if !t.IsValid() {
		return Block{}, shared.ErrInvalidBlockType
	}
	if _, err := shared.NewPosition(pos.X, pos.Y); err != nil {
		return Block{}, err
	}
	return Block{
		ID:        shared.NewBlockID(),
		ProjectID: projectID,
		CreatorID: creatorID,
		Type:      t,
		Content:   PlaceholderContent,
		Position:  pos,
		Version:   InitialVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Title is the first line of the content.
func (b Block) Title() string {
	return shared.FirstLine(b.Content)
}

// Tags returns the block's tags.
func (b Block) Tags() []string {
	return b.Metadata.Tags
}

// Clone returns a deep copy so callers can hold snapshots.
func (b Block) Clone() Block {
	b.Metadata = b.Metadata.Clone()
	return b
}

// Patch is a partial update; nil fields keep their current value.
type Patch struct {
	Content  *string          `json:"content,omitempty"`
	Metadata *Metadata        `json:"metadata,omitempty"`
	Position *shared.Position `json:"position,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Content == nil && p.Metadata == nil && p.Position == nil
}

// Validate checks the supplied fields without touching any block.
func (p Patch) Validate() error {
	if p.Content != nil {
		if err := shared.ValidateContent(*p.Content); err != nil {
			return err
		}
	}
	if p.Metadata != nil {
		m := p.Metadata.Clone()
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if p.Position != nil {
		if _, err := shared.NewPosition(p.Position.X, p.Position.Y); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns the patched block and the history record describing the
// state it replaced. The receiver is not modified.
func (b Block) Apply(p Patch, changedBy shared.UserID, now time.Time) (Block, Version, error) {
	if err := p.Validate(); err != nil {
		return Block{}, Version{}, err
	}

	prior := NewVersion(b, DefaultChangeSummary, changedBy, now)

	next := b.Clone()
	if p.Content != nil {
		next.Content = *p.Content
	}
	if p.Metadata != nil {
		m := p.Metadata.Clone()
		_ = m.Validate()
		next.Metadata = m
	}
	if p.Position != nil {
		next.Position = *p.Position
	}
	next.Version = b.Version + 1
	next.UpdatedAt = now

	return next, prior, nil
}

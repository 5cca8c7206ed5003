// Package shared holds the identifiers and small value objects used by every
// domain package: typed ids, canvas positions, tag lists and content rules.
package shared

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// BlockID identifies a knowledge block.
type BlockID string

// RelationshipID identifies a directed relationship between two blocks.
type RelationshipID string

// ProjectID identifies a project, the container that scopes blocks and relationships.
type ProjectID string

// UserID identifies the person acting on a project.
type UserID string

// NewBlockID creates a new random BlockID
func NewBlockID() BlockID { return BlockID(uuid.New().String()) }

// NewRelationshipID creates a new random RelationshipID
func NewRelationshipID() RelationshipID { return RelationshipID(uuid.New().String()) }

// NewProjectID creates a new random ProjectID
func NewProjectID() ProjectID { return ProjectID(uuid.New().String()) }

// NewRecordID creates an id for append-only records (versions, interactions, exports).
func NewRecordID() string { return uuid.New().String() }

// ParseBlockID validates that id is a UUID.
func ParseBlockID(id string) (BlockID, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return "", ErrInvalidBlockID
	}
	return BlockID(strings.TrimSpace(id)), nil
}

// ParseRelationshipID validates that id is a UUID.
func ParseRelationshipID(id string) (RelationshipID, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return "", ErrInvalidRelationshipID
	}
	return RelationshipID(strings.TrimSpace(id)), nil
}

// ParseProjectID validates that id is a UUID.
func ParseProjectID(id string) (ProjectID, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return "", ErrInvalidProjectID
	}
	return ProjectID(strings.TrimSpace(id)), nil
}

// NewUserID trims and validates a user identifier. User ids come from the
// auth provider, so only emptiness is checked.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyUserID
	}
	return UserID(id), nil
}

func (id BlockID) String() string        { return string(id) }
func (id RelationshipID) String() string { return string(id) }
func (id ProjectID) String() string      { return string(id) }
func (id UserID) String() string         { return string(id) }

// IsEmpty reports whether the id is unset.
func (id BlockID) IsEmpty() bool { return id == "" }

// IsEmpty reports whether the id is unset.
func (id ProjectID) IsEmpty() bool { return id == "" }

// Position is a point in canvas-logical space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition rejects NaN and infinite coordinates.
func NewPosition(x, y float64) (Position, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Position{}, ErrInvalidPosition
	}
	return Position{X: x, Y: y}, nil
}

// Add returns p translated by o.
func (p Position) Add(o Position) Position { return Position{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p translated by -o.
func (p Position) Sub(o Position) Position { return Position{X: p.X - o.X, Y: p.Y - o.Y} }

// Scale multiplies both coordinates by f.
func (p Position) Scale(f float64) Position { return Position{X: p.X * f, Y: p.Y * f} }

// NormalizeTags trims every tag and drops blanks and repeats, keeping
// first-insertion order. A tag longer than MaxTagLength fails the whole set.
func NormalizeTags(tags []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > MaxTagLength {
			return nil, TagTooLong(len(tag))
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// ValidateContent checks a block body. Whitespace-only content counts as empty.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if len(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ValidateTitle checks a project title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// FirstLine returns the text before the first newline, which derived views
// treat as the title of a block.
func FirstLine(content string) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		return content[:i]
	}
	return content
}

// CopyStrings returns an independent copy of s, preserving nil.
func CopyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Package project defines the project container and the records archived
// against it: persona interactions and rendered exports.
package project

import (
	"strings"
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// WorkMode is the phase the author is working in. It changes which panels a
// client emphasises; the graph itself is unaffected.
type WorkMode string

const (
	ModeExploration WorkMode = "exploration"
	ModeSynthesis   WorkMode = "synthesis"
	ModeComposition WorkMode = "composition"
)

// ParseWorkMode validates a mode tag.
func ParseWorkMode(s string) (WorkMode, error) {
	m := WorkMode(strings.TrimSpace(s))
	switch m {
	case ModeExploration, ModeSynthesis, ModeComposition:
		return m, nil
	}
	return "", shared.ErrInvalidWorkMode
}

// Metadata holds project classification.
type Metadata struct {
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`
	WorkMode WorkMode `json:"work_mode,omitempty"`
}

// Project owns the blocks and relationships scoped by its id.
type Project struct {
	ID          shared.ProjectID `json:"id"`
	OwnerID     shared.UserID    `json:"owner_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Metadata    Metadata         `json:"metadata"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// New validates the title and creates a project in exploration mode.
func New(owner shared.UserID, title, description string, now time.Time) (Project, error) {
	if owner == "" {
		return Project{}, shared.ErrEmptyUserID
	}
	if err := shared.ValidateTitle(title); err != nil {
		return Project{}, err
	}
	return Project{
		ID:          shared.NewProjectID(),
		OwnerID:     owner,
		Title:       strings.TrimSpace(title),
		Description: description,
		Metadata:    Metadata{WorkMode: ModeExploration},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Mode returns the work mode, defaulting to exploration for older records.
func (p Project) Mode() WorkMode {
	if p.Metadata.WorkMode == "" {
		return ModeExploration
	}
	return p.Metadata.WorkMode
}

// OwnedBy reports whether user may modify the project.
func (p Project) OwnedBy(user shared.UserID) bool {
	return p.OwnerID == user
}

// Patch is a partial project update.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Category    *string   `json:"category,omitempty"`
	WorkMode    *WorkMode `json:"work_mode,omitempty"`
}

// Apply returns the patched project; the receiver is unchanged.
func (p Project) Apply(patch Patch, now time.Time) (Project, error) {
	next := p
	next.Metadata.Tags = shared.CopyStrings(p.Metadata.Tags)
	if patch.Title != nil {
		if err := shared.ValidateTitle(*patch.Title); err != nil {
			return Project{}, err
		}
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Tags != nil {
		tags, err := shared.NormalizeTags(*patch.Tags)
		if err != nil {
			return Project{}, err
		}
		next.Metadata.Tags = tags
	}
	if patch.Category != nil {
		next.Metadata.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.WorkMode != nil {
		mode, err := ParseWorkMode(string(*patch.WorkMode))
		if err != nil {
			return Project{}, err
		}
		next.Metadata.WorkMode = mode
	}
	next.UpdatedAt = now
	return next, nil
}

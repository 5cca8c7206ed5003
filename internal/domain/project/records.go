package project

import (
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// DefaultAudience is archived with exports that name no audience.
const DefaultAudience = "general"

// Interaction archives one persona prompt and its answer.
type Interaction struct {
	ID        string           `json:"id"`
	ProjectID shared.ProjectID `json:"project_id"`
	UserID    shared.UserID    `json:"user_id"`
	Persona   string           `json:"persona"`
	Prompt    string           `json:"prompt"`
	Response  string           `json:"response"`
	CreatedAt time.Time        `json:"created_at"`
}

// Export archives a rendered document exactly as it was handed to the user.
type Export struct {
	ID        string           `json:"id"`
	ProjectID shared.ProjectID `json:"project_id"`
	CreatorID shared.UserID    `json:"creator_id"`
	Format    string           `json:"format"`
	Audience  string           `json:"audience"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

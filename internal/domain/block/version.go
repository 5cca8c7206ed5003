package block

import (
	"time"

	"github.com/wuzhiguocarter/Aletheia/internal/domain/shared"
)

// DefaultChangeSummary is recorded when the caller gives no summary.
const DefaultChangeSummary = "Updated content"

// Version is an immutable snapshot of a block taken just before an update.
// Version and Content are the pre-update values.
type Version struct {
	ID            string         `json:"id"`
	BlockID       shared.BlockID `json:"block_id"`
	Version       int            `json:"version"`
	Content       string         `json:"content"`
	ChangeSummary string         `json:"change_summary"`
	ChangedBy     shared.UserID  `json:"changed_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// NewVersion snapshots b as it is now.
func NewVersion(b Block, summary string, changedBy shared.UserID, now time.Time) Version {
	if summary == "" {
		summary = DefaultChangeSummary
	}
	return Version{
		ID:            shared.NewRecordID(),
		BlockID:       b.ID,
		Version:       b.Version,
		Content:       b.Content,
		ChangeSummary: summary,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}
}

package links

import (
	"time"

	"github.com/google/uuid"
)

// Link is a saved bookmark. Optional fields are nil when absent; archived
// links are excluded from default listings.
type Link struct {
	ID                   uuid.UUID
	UserID               string
	URL                  string
	Title                *string
	Description          *string
	ImageURL             *string
	ContentType          *string
	EstimatedReadingTime *int32
	WordCount            *int32
	IsArchived           bool
	ArchivedAt           *time.Time
	Categories           []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Category is a per-user free-text label. (UserID, Name) uniqueness is
// enforced case-sensitively in the upsert path, not by the database.
type Category struct {
	ID        uuid.UUID
	UserID    string
	Name      string
	Color     *string
	Icon      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

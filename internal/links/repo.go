package links

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a listing query. The zero value lists a user's
// non-archived links, newest first, with the default limit.
type ListFilter struct {
	Search   string // substring match over title/description
	Category string // exact category-name match
	Archived bool   // list archived links instead of active ones
	Limit    int32
}

// Repository defines the persistence operations for links and their
// categories. Implementations must run the multi-step link-plus-categories
// writes as a single atomic unit and must resolve category names
// sequentially within a call, so repeated names in one submission collapse
// onto a single category row.
type Repository interface {
	CreateLink(ctx context.Context, link Link, categories []string) (Link, error)
	UpdateLink(ctx context.Context, link Link, categories []string) (Link, error)
	GetLink(ctx context.Context, userID string, id uuid.UUID) (Link, error)
	ListLinks(ctx context.Context, userID string, filter ListFilter) ([]Link, error)
	ArchiveLink(ctx context.Context, userID string, id uuid.UUID) error
	DeleteLink(ctx context.Context, userID string, id uuid.UUID) error
	ListCategories(ctx context.Context, userID string) ([]Category, error)
}

package links

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zpocket/zpocket/internal/errx"
	"github.com/zpocket/zpocket/internal/metadata"
)

const (
	MaxURLLength  = 2048
	MaxListLimit  = 100
	MaxCategories = 50
)

// SaveLinkRequest carries the fields a user submits when adding or editing
// a link. URL is required; everything else is optional.
type SaveLinkRequest struct {
	URL         string
	Title       string
	Description string
	ImageURL    string
	ContentType string
	Categories  []string
}

// Service defines the business operations over a user's saved links. Every
// method takes the authenticated user id explicitly; there is no ambient
// session state.
type Service interface {
	Create(ctx context.Context, userID string, req SaveLinkRequest) (Link, error)
	Update(ctx context.Context, userID, linkID string, req SaveLinkRequest) (Link, error)
	Get(ctx context.Context, userID, linkID string) (Link, error)
	List(ctx context.Context, userID string, filter ListFilter) ([]Link, error)
	Archive(ctx context.Context, userID, linkID string) error
	Delete(ctx context.Context, userID, linkID string) error
	Categories(ctx context.Context, userID string) ([]string, error)
}

type service struct {
	repo Repository
}

// NewService creates a new service instance.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, userID string, req SaveLinkRequest) (Link, error) {
	const op = "links.service.Create"

	if userID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	normalized, err := validateSaveRequest(&req)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	link := Link{
		UserID:      userID,
		URL:         normalized,
		Title:       optional(req.Title),
		Description: optional(req.Description),
		ImageURL:    optional(req.ImageURL),
		ContentType: optional(req.ContentType),
	}

	created, err := s.repo.CreateLink(ctx, link, req.Categories)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, userID, linkID string, req SaveLinkRequest) (Link, error) {
	const op = "links.service.Update"

	if userID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	id, err := parseLinkID(linkID)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	normalized, err := validateSaveRequest(&req)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	link := Link{
		ID:          id,
		UserID:      userID,
		URL:         normalized,
		Title:       optional(req.Title),
		Description: optional(req.Description),
		ImageURL:    optional(req.ImageURL),
		ContentType: optional(req.ContentType),
	}

	updated, err := s.repo.UpdateLink(ctx, link, req.Categories)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, userID, linkID string) (Link, error) {
	const op = "links.service.Get"

	if userID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	id, err := parseLinkID(linkID)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	link, err := s.repo.GetLink(ctx, userID, id)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) List(ctx context.Context, userID string, filter ListFilter) ([]Link, error) {
	const op = "links.service.List"

	if userID == "" {
		return nil, errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	if filter.Limit < 0 || filter.Limit > MaxListLimit {
		filter.Limit = 0 // repo applies the default
	}

	result, err := s.repo.ListLinks(ctx, userID, filter)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return result, nil
}

func (s *service) Archive(ctx context.Context, userID, linkID string) error {
	const op = "links.service.Archive"

	if userID == "" {
		return errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	id, err := parseLinkID(linkID)
	if err != nil {
		return errx.E(op, errx.Invalid, err)
	}

	if err := s.repo.ArchiveLink(ctx, userID, id); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, userID, linkID string) error {
	const op = "links.service.Delete"

	if userID == "" {
		return errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	id, err := parseLinkID(linkID)
	if err != nil {
		return errx.E(op, errx.Invalid, err)
	}

	if err := s.repo.DeleteLink(ctx, userID, id); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

func (s *service) Categories(ctx context.Context, userID string) ([]string, error) {
	const op = "links.service.Categories"

	if userID == "" {
		return nil, errx.E(op, errx.Unauthorized, errors.New("user id is required"))
	}

	categories, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

// validateSaveRequest checks the submitted fields and returns the
// normalized URL.
func validateSaveRequest(req *SaveLinkRequest) (string, error) {
	const op = "links.service.validateSaveRequest"

	if req.URL == "" {
		return "", errx.E(op, errx.Invalid, errors.New("URL is required"))
	}
	if len(req.URL) > MaxURLLength {
		return "", errx.E(op, errx.Invalid, errors.New("url too long (max 2048 characters)"))
	}
	if len(req.Categories) > MaxCategories {
		return "", errx.E(op, errx.Invalid, errors.New("too many categories (max 50)"))
	}

	normalized, err := metadata.NormalizeURL(req.URL)
	if err != nil {
		return "", err
	}
	return normalized, nil
}

func parseLinkID(linkID string) (uuid.UUID, error) {
	if linkID == "" {
		return uuid.Nil, errors.New("link id is required")
	}
	id, err := uuid.Parse(linkID)
	if err != nil {
		return uuid.Nil, errors.New("invalid link id")
	}
	return id, nil
}

// optional maps an empty form value to NULL.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package links

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zpocket/zpocket/internal/auth"
	"github.com/zpocket/zpocket/internal/errx"
	"github.com/zpocket/zpocket/internal/httpx"
	"github.com/zpocket/zpocket/internal/metadata"
)

// HTTPSaveLinkRequest is the JSON body for creating or updating a link.
type HTTPSaveLinkRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	ContentType string   `json:"type,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// HTTPMetadataRequest is the JSON body for a metadata preview request.
type HTTPMetadataRequest struct {
	URL string `json:"url"`
}

// LinkResponse is the JSON representation of a saved link.
type LinkResponse struct {
	ID                   string     `json:"id"`
	URL                  string     `json:"url"`
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	ImageURL             *string    `json:"imageUrl"`
	ContentType          *string    `json:"type"`
	EstimatedReadingTime *int32     `json:"estimatedReadingTime"`
	WordCount            *int32     `json:"wordCount"`
	IsArchived           bool       `json:"isArchived"`
	ArchivedAt           *time.Time `json:"archivedAt"`
	Categories           []string   `json:"categories"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// SaveLinkResponse mirrors the success envelope of the original form
// actions.
type SaveLinkResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	LinkID  string       `json:"linkId"`
	Link    LinkResponse `json:"link"`
}

// MetadataResponse is the preview payload. A fetch failure is reported in
// Error rather than as an HTTP error; the user can still save the link.
type MetadataResponse struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Handler provides the HTTP handlers for the links API.
type Handler struct {
	service  Service
	previews *metadata.Fetcher
	logger   *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service  Service
	Previews *metadata.Fetcher
	Logger   *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	previews := cfg.Previews
	if previews == nil {
		previews = metadata.NewFetcher(nil)
	}

	return &Handler{
		service:  cfg.Service,
		previews: previews,
		logger:   logger,
	}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func toLinkResponse(l Link) LinkResponse {
	categories := l.Categories
	if categories == nil {
		categories = []string{}
	}
	return LinkResponse{
		ID:                   l.ID.String(),
		URL:                  l.URL,
		Title:                l.Title,
		Description:          l.Description,
		ImageURL:             l.ImageURL,
		ContentType:          l.ContentType,
		EstimatedReadingTime: l.EstimatedReadingTime,
		WordCount:            l.WordCount,
		IsArchived:           l.IsArchived,
		ArchivedAt:           l.ArchivedAt,
		Categories:           categories,
		CreatedAt:            l.CreatedAt,
		UpdatedAt:            l.UpdatedAt,
	}
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPSaveLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	link, err := h.service.Create(ctx, auth.UserID(ctx), toSaveRequest(req))
	if err != nil {
		h.writeServiceError(ctx, w, err, "Failed to add link. Please try again.")
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"categories", len(link.Categories),
	)

	httpx.WriteJSON(w, http.StatusCreated, SaveLinkResponse{
		Success: true,
		Message: "Link added successfully!",
		LinkID:  link.ID.String(),
		Link:    toLinkResponse(link),
	})
}

// UpdateLink handles PUT /api/links/{id}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPSaveLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	link, err := h.service.Update(ctx, auth.UserID(ctx), r.PathValue("id"), toSaveRequest(req))
	if err != nil {
		h.writeServiceError(ctx, w, err, "Failed to update link. Please try again.")
		return
	}

	logger.InfoContext(ctx, "link updated", "link_id", link.ID.String())

	httpx.WriteJSON(w, http.StatusOK, SaveLinkResponse{
		Success: true,
		Message: "Link updated successfully!",
		LinkID:  link.ID.String(),
		Link:    toLinkResponse(link),
	})
}

// GetLink handles GET /api/links/{id}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := h.service.Get(ctx, auth.UserID(ctx), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "Failed to load link. Please try again.")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// ListLinks handles GET /api/links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := ListFilter{
		Search:   r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Archived: r.URL.Query().Get("archived") == "true",
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a number")
			return
		}
		filter.Limit = int32(limit)
	}

	result, err := h.service.List(ctx, auth.UserID(ctx), filter)
	if err != nil {
		h.writeServiceError(ctx, w, err, "Failed to load links. Please try again.")
		return
	}

	responses := make([]LinkResponse, 0, len(result))
	for _, l := range result {
		responses = append(responses, toLinkResponse(l))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"links": responses})
}

// ArchiveLink handles POST /api/links/{id}/archive.
func (h *Handler) ArchiveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Archive(ctx, auth.UserID(ctx), r.PathValue("id")); err != nil {
		h.writeServiceError(ctx, w, err, "Failed to archive link. Please try again.")
		return
	}

	h.requestLogger(r).InfoContext(ctx, "link archived", "link_id", r.PathValue("id"))

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"error":   false,
		"message": "Link archived successfully!",
	})
}

// DeleteLink handles DELETE /api/links/{id}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Delete(ctx, auth.UserID(ctx), r.PathValue("id")); err != nil {
		h.writeServiceError(ctx, w, err, "Failed to delete link. Please try again.")
		return
	}

	h.requestLogger(r).InfoContext(ctx, "link deleted", "link_id", r.PathValue("id"))

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"error":   false,
		"message": "Link deleted successfully!",
	})
}

// ListCategories handles GET /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names, err := h.service.Categories(ctx, auth.UserID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, err, "Failed to load categories. Please try again.")
		return
	}
	if names == nil {
		names = []string{}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": names})
}

// FetchMetadata handles POST /api/metadata. Fetch failures are non-fatal:
// the response is 200 with an error message and the client may submit the
// link without a preview.
func (h *Handler) FetchMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPMetadataRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	preview, err := h.previews.Preview(ctx, req.URL)
	if err != nil {
		logger.WarnContext(ctx, "metadata fetch failed",
			"url", req.URL,
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		httpx.WriteJSON(w, http.StatusOK, MetadataResponse{Error: previewErrorMessage(err)})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MetadataResponse{
		Title:       preview.Title,
		Description: preview.Description,
		ImageURL:    preview.ImageURL,
	})
}

// previewErrorMessage converts pipeline errors to the messages the form UI
// shows next to the URL field.
func previewErrorMessage(err error) string {
	switch errx.KindOf(err) {
	case errx.Invalid:
		return "Invalid URL format"
	case errx.Timeout:
		return "Request timeout - URL took too long to respond"
	default:
		var statusErr *metadata.StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Error()
		}
		return "Failed to fetch metadata"
	}
}

// writeServiceError maps service error kinds to HTTP responses with a single
// human-readable message.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "unauthenticated request", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"You must be logged in")

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errx.NotFound:
		h.logger.WarnContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"Link not found or you don't have permission to edit it")

	case errx.Timeout:
		h.logger.ErrorContext(ctx, "operation timed out", logAttrs...)
		httpx.WriteError(w, http.StatusGatewayTimeout, "timeout", fallback)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "storage unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", fallback)

	default:
		h.logger.ErrorContext(ctx, "unexpected error", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

func toSaveRequest(req HTTPSaveLinkRequest) SaveLinkRequest {
	return SaveLinkRequest{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		ContentType: req.ContentType,
		Categories:  req.Categories,
	}
}

package links

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/zpocket/zpocket/internal/auth"
	"github.com/zpocket/zpocket/internal/errx"
)

/***************
 * Mocks
 ***************/

// mockService implements Service interface for testing handlers.
type mockService struct {
	createFunc     func(ctx context.Context, userID string, req SaveLinkRequest) (Link, error)
	updateFunc     func(ctx context.Context, userID, linkID string, req SaveLinkRequest) (Link, error)
	getFunc        func(ctx context.Context, userID, linkID string) (Link, error)
	listFunc       func(ctx context.Context, userID string, filter ListFilter) ([]Link, error)
	archiveFunc    func(ctx context.Context, userID, linkID string) error
	deleteFunc     func(ctx context.Context, userID, linkID string) error
	categoriesFunc func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockService) Create(ctx context.Context, userID string, req SaveLinkRequest) (Link, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, req)
	}
	return Link{ID: uuid.New(), UserID: userID, URL: req.URL}, nil
}

func (m *mockService) Update(ctx context.Context, userID, linkID string, req SaveLinkRequest) (Link, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, userID, linkID, req)
	}
	return Link{ID: uuid.New(), UserID: userID, URL: req.URL}, nil
}

func (m *mockService) Get(ctx context.Context, userID, linkID string) (Link, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, linkID)
	}
	return Link{}, errx.E("service.Get", errx.NotFound, errors.New("not found"))
}

func (m *mockService) List(ctx context.Context, userID string, filter ListFilter) ([]Link, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, filter)
	}
	return nil, nil
}

func (m *mockService) Archive(ctx context.Context, userID, linkID string) error {
	if m.archiveFunc != nil {
		return m.archiveFunc(ctx, userID, linkID)
	}
	return nil
}

func (m *mockService) Delete(ctx context.Context, userID, linkID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, userID, linkID)
	}
	return nil
}

func (m *mockService) Categories(ctx context.Context, userID string) ([]string, error) {
	if m.categoriesFunc != nil {
		return m.categoriesFunc(ctx, userID)
	}
	return nil, nil
}

func newTestHandler(svc Service) *Handler {
	return NewHandler(HandlerConfig{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// authedRequest builds a request that already passed the auth middleware.
func authedRequest(method, target, userID string, body string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

/***************
 * Tests
 ***************/

func TestHandlerCreateLink(t *testing.T) {
	t.Run("returns 201 with the saved link", func(t *testing.T) {
		linkID := uuid.New()
		svc := &mockService{
			createFunc: func(_ context.Context, userID string, req SaveLinkRequest) (Link, error) {
				if userID != "user-1" {
					t.Errorf("userID = %q, want user-1", userID)
				}
				return Link{ID: linkID, UserID: userID, URL: "https://react.dev", Categories: []string{"Tech"}}, nil
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.CreateLink(rec, authedRequest(http.MethodPost, "/api/links", "user-1",
			`{"url":"react.dev","categories":["Tech"]}`))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		resp := decodeBody[SaveLinkResponse](t, rec)
		if !resp.Success {
			t.Error("expected success = true")
		}
		if resp.LinkID != linkID.String() {
			t.Errorf("linkId = %q, want %q", resp.LinkID, linkID)
		}
		if resp.Link.URL != "https://react.dev" {
			t.Errorf("link url = %q", resp.Link.URL)
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.CreateLink(rec, authedRequest(http.MethodPost, "/api/links", "user-1", `{"url":`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("returns 400 for invalid input", func(t *testing.T) {
		svc := &mockService{
			createFunc: func(context.Context, string, SaveLinkRequest) (Link, error) {
				return Link{}, errx.E("service.Create", errx.Invalid, errors.New("URL is required"))
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.CreateLink(rec, authedRequest(http.MethodPost, "/api/links", "user-1", `{}`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("returns 503 when storage is down", func(t *testing.T) {
		svc := &mockService{
			createFunc: func(context.Context, string, SaveLinkRequest) (Link, error) {
				return Link{}, errx.E("service.Create", errx.Unavailable, errors.New("connection refused"))
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.CreateLink(rec, authedRequest(http.MethodPost, "/api/links", "user-1", `{"url":"react.dev"}`))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("returns 504 when the operation times out", func(t *testing.T) {
		svc := &mockService{
			createFunc: func(context.Context, string, SaveLinkRequest) (Link, error) {
				return Link{}, errx.E("service.Create", errx.Timeout, errors.New("deadline exceeded"))
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.CreateLink(rec, authedRequest(http.MethodPost, "/api/links", "user-1", `{"url":"react.dev"}`))

		if rec.Code != http.StatusGatewayTimeout {
			t.Fatalf("status = %d, want 504", rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body["error"] != "timeout" {
			t.Errorf("error code = %v, want timeout", body["error"])
		}
	})
}

func TestHandlerUpdateLink(t *testing.T) {
	t.Run("returns 404 for a foreign link", func(t *testing.T) {
		svc := &mockService{
			updateFunc: func(context.Context, string, string, SaveLinkRequest) (Link, error) {
				return Link{}, errx.E("service.Update", errx.NotFound, errors.New("no rows"))
			},
		}
		h := newTestHandler(svc)

		req := authedRequest(http.MethodPut, "/api/links/"+uuid.NewString(), "user-2", `{"url":"react.dev"}`)
		req.SetPathValue("id", uuid.NewString())
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if msg, _ := body["message"].(string); !strings.Contains(msg, "permission") {
			t.Errorf("message = %q, want permission wording", msg)
		}
	})

	t.Run("passes the path id to the service", func(t *testing.T) {
		linkID := uuid.NewString()
		var gotID string
		svc := &mockService{
			updateFunc: func(_ context.Context, _ string, id string, req SaveLinkRequest) (Link, error) {
				gotID = id
				return Link{ID: uuid.MustParse(linkID), URL: req.URL}, nil
			},
		}
		h := newTestHandler(svc)

		req := authedRequest(http.MethodPut, "/api/links/"+linkID, "user-1", `{"url":"react.dev"}`)
		req.SetPathValue("id", linkID)
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotID != linkID {
			t.Errorf("id = %q, want %q", gotID, linkID)
		}
	})
}

func TestHandlerListLinks(t *testing.T) {
	t.Run("parses query filters", func(t *testing.T) {
		var gotFilter ListFilter
		svc := &mockService{
			listFunc: func(_ context.Context, _ string, filter ListFilter) ([]Link, error) {
				gotFilter = filter
				return nil, nil
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.ListLinks(rec, authedRequest(http.MethodGet,
			"/api/links?q=react&category=Tech&archived=true&limit=5", "user-1", ""))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		want := ListFilter{Search: "react", Category: "Tech", Archived: true, Limit: 5}
		if gotFilter != want {
			t.Errorf("filter = %+v, want %+v", gotFilter, want)
		}
	})

	t.Run("returns an empty array when the user has no links", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.ListLinks(rec, authedRequest(http.MethodGet, "/api/links", "user-1", ""))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody[map[string][]LinkResponse](t, rec)
		if body["links"] == nil || len(body["links"]) != 0 {
			t.Errorf("links = %v, want []", body["links"])
		}
	})

	t.Run("rejects non-numeric limit", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.ListLinks(rec, authedRequest(http.MethodGet, "/api/links?limit=abc", "user-1", ""))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerArchiveLink(t *testing.T) {
	t.Run("returns the archive confirmation envelope", func(t *testing.T) {
		linkID := uuid.NewString()
		svc := &mockService{}
		h := newTestHandler(svc)

		req := authedRequest(http.MethodPost, "/api/links/"+linkID+"/archive", "user-1", "")
		req.SetPathValue("id", linkID)
		rec := httptest.NewRecorder()
		h.ArchiveLink(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody[map[string]any](t, rec)
		if body["error"] != false {
			t.Errorf("error = %v, want false", body["error"])
		}
		if body["message"] != "Link archived successfully!" {
			t.Errorf("message = %q", body["message"])
		}
	})
}

func TestHandlerDeleteLink(t *testing.T) {
	t.Run("returns 404 when nothing was deleted", func(t *testing.T) {
		svc := &mockService{
			deleteFunc: func(context.Context, string, string) error {
				return errx.E("service.Delete", errx.NotFound, errors.New("no rows"))
			},
		}
		h := newTestHandler(svc)

		linkID := uuid.NewString()
		req := authedRequest(http.MethodDelete, "/api/links/"+linkID, "user-1", "")
		req.SetPathValue("id", linkID)
		rec := httptest.NewRecorder()
		h.DeleteLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHandlerListCategories(t *testing.T) {
	t.Run("returns category names", func(t *testing.T) {
		svc := &mockService{
			categoriesFunc: func(context.Context, string) ([]string, error) {
				return []string{"Design", "Tech"}, nil
			},
		}
		h := newTestHandler(svc)

		rec := httptest.NewRecorder()
		h.ListCategories(rec, authedRequest(http.MethodGet, "/api/categories", "user-1", ""))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decodeBody[map[string][]string](t, rec)
		if len(body["categories"]) != 2 {
			t.Errorf("categories = %v", body["categories"])
		}
	})

	t.Run("returns an empty array for a new user", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.ListCategories(rec, authedRequest(http.MethodGet, "/api/categories", "user-1", ""))

		body := decodeBody[map[string][]string](t, rec)
		if body["categories"] == nil || len(body["categories"]) != 0 {
			t.Errorf("categories = %v, want []", body["categories"])
		}
	})
}

func TestHandlerFetchMetadata(t *testing.T) {
	t.Run("reports invalid URLs in the payload, not the status", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.FetchMetadata(rec, authedRequest(http.MethodPost, "/api/metadata", "user-1", `{"url":""}`))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		resp := decodeBody[MetadataResponse](t, rec)
		if resp.Error != "Invalid URL format" {
			t.Errorf("error = %q, want Invalid URL format", resp.Error)
		}
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		h := newTestHandler(&mockService{})

		rec := httptest.NewRecorder()
		h.FetchMetadata(rec, authedRequest(http.MethodPost, "/api/metadata", "user-1", `not-json`))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zpocket/zpocket/internal/errx"
)

const (
	// DefaultFetchTimeout bounds the whole fetch, after which the in-flight
	// request is aborted.
	DefaultFetchTimeout = 10 * time.Second

	userAgent    = "Mozilla/5.0 (compatible; LinkMetadataBot/1.0)"
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	// maxBodySize caps how much of a page is read. Metadata lives in <head>,
	// so 1MB is more than enough.
	maxBodySize = 1 << 20
)

// StatusError reports a non-success HTTP response from the target page.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch URL: %s", e.Status)
}

// Fetcher retrieves pages and extracts preview metadata from them.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// FetcherConfig holds configuration for the Fetcher.
type FetcherConfig struct {
	Timeout time.Duration // per-fetch deadline (default: 10s)
	Client  *http.Client  // optional, for tests
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	if cfg == nil {
		cfg = &FetcherConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Fetcher{
		client:  client,
		timeout: timeout,
	}
}

// Fetch performs a single bounded GET against an already-normalized URL and
// returns the raw response body. Exactly one attempt, no retries.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	const op = "metadata.Fetcher.Fetch"

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", errx.E(op, errx.Invalid, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errx.E(op, errx.Timeout,
				errors.New("request timeout - URL took too long to respond"))
		}
		return "", errx.E(op, errx.Unavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errx.E(op, errx.Unavailable, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errx.E(op, errx.Timeout,
				errors.New("request timeout - URL took too long to respond"))
		}
		return "", errx.E(op, errx.Unavailable, err)
	}

	return string(body), nil
}

// Preview normalizes rawURL, fetches the page and parses its metadata.
// The originally requested URL (not any redirect target) is the base for
// resolving relative image URLs.
func (f *Fetcher) Preview(ctx context.Context, rawURL string) (Preview, error) {
	pageURL, err := NormalizeURL(rawURL)
	if err != nil {
		return Preview{}, err
	}

	body, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return Preview{}, err
	}

	return Parse(body, pageURL), nil
}

// Package metadata resolves preview metadata (title, description, image) for
// a user-supplied URL by fetching the page and extracting Open Graph tags
// with fallbacks to plain HTML tags.
package metadata

import (
	"errors"
	"net/url"
	"strings"

	"github.com/zpocket/zpocket/internal/errx"
)

// Preview holds metadata extracted from a page. Every field is optional;
// the zero value is a valid "nothing found" result.
type Preview struct {
	Title       string
	Description string
	ImageURL    string
}

// NormalizeURL ensures a raw user-supplied string is a well-formed absolute
// URL. Strings without an http scheme prefix get https prepended.
func NormalizeURL(raw string) (string, error) {
	const op = "metadata.NormalizeURL"

	if raw == "" {
		return "", errx.E(op, errx.Invalid, errors.New("url cannot be empty"))
	}

	normalized := raw
	if !strings.HasPrefix(raw, "http") {
		normalized = "https://" + raw
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", errx.E(op, errx.Invalid, errors.New("invalid url format"))
	}
	if !u.IsAbs() || u.Host == "" {
		return "", errx.E(op, errx.Invalid, errors.New("invalid url format"))
	}

	return normalized, nil
}

package metadata

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// rawTags collects the first occurrence of each interesting tag in document
// order. Empty string means the tag was not seen (or had empty content).
type rawTags struct {
	ogTitle       string
	ogDescription string
	ogImage       string
	description   string
	title         string
}

// Parse extracts preview metadata from HTML. Open Graph tags win over their
// fallbacks (<title>, the plain description meta). Entities are decoded by
// the HTML parser itself, named and numeric alike. Absence of tags is not an
// error; the zero Preview is a valid result.
func Parse(htmlText, baseURL string) Preview {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return Preview{}
	}

	var tags rawTags
	collect(doc, &tags)

	var p Preview

	if tags.ogTitle != "" {
		p.Title = tags.ogTitle
	} else {
		p.Title = tags.title
	}

	if tags.ogDescription != "" {
		p.Description = tags.ogDescription
	} else {
		p.Description = tags.description
	}

	if tags.ogImage != "" {
		p.ImageURL = resolveImageURL(tags.ogImage, baseURL)
	}

	p.Title = cleanText(p.Title)
	p.Description = cleanText(p.Description)

	return p
}

// collect walks the parse tree depth-first (document order) and records the
// first non-empty value for each tag of interest.
func collect(n *html.Node, tags *rawTags) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if tags.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				tags.title = n.FirstChild.Data
			}
		case "meta":
			var name, property, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "property":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}

			// Sites set OG tags via either attribute; accept both.
			key := property
			if key == "" {
				key = name
			}

			if content != "" {
				switch key {
				case "og:title":
					if tags.ogTitle == "" {
						tags.ogTitle = content
					}
				case "og:description":
					if tags.ogDescription == "" {
						tags.ogDescription = content
					}
				case "og:image":
					if tags.ogImage == "" {
						tags.ogImage = content
					}
				case "description":
					if tags.description == "" {
						tags.description = content
					}
				}
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, tags)
	}
}

// resolveImageURL returns imageURL as-is when absolute, otherwise resolves it
// against the origin of baseURL. Returns "" when resolution fails; a broken
// image reference is dropped silently rather than surfaced as an error.
func resolveImageURL(imageURL, baseURL string) string {
	if strings.HasPrefix(imageURL, "http") {
		return imageURL
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return ""
	}

	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	resolved, err := origin.Parse(imageURL)
	if err != nil {
		return ""
	}
	return resolved.String()
}

// cleanText collapses whitespace runs to single spaces and trims.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

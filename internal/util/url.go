package util

import (
	"net/url"
	"strings"
)

// NormaliseURL canonicalises a sitemap URL for use as a visited-set key.
// Scheme and host are lower-cased, fragments dropped and trailing slashes
// trimmed, so an index that re-references itself with different casing or a
// stray fragment still terminates the traversal. Returns "" for anything
// that is not an absolute http(s) URL.
func NormaliseURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}

// IsAbsoluteURL reports whether s parses as an absolute http(s) URL.
func IsAbsoluteURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

package sitemap

import "strings"

// FilterStoreURLs returns the entries containing the store-path marker,
// preserving order. Matching is a case-sensitive substring check against the
// literal marker, e.g. "/trgovina/" for store listing pages. An empty marker
// keeps everything.
func FilterStoreURLs(entries []string, marker string) []string {
	if marker == "" {
		return entries
	}

	var filtered []string
	for _, entry := range entries {
		if strings.Contains(entry, marker) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

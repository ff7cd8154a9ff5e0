package crawl

import (
	"context"
	"fmt"

	"github.com/storecrawl/storemap/internal/sitemap"
)

// Fetcher is the injected fetch capability. The crawler never implements
// transport details itself; timeout and retry policy belong to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements the Fetcher interface
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// SitemapRef is a discovered sitemap location and its distance from the
// root index.
type SitemapRef struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// MarshalText renders the ref as a single string so it can key a JSON map.
func (r SitemapRef) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%s (depth %d)", r.URL, r.Depth)), nil
}

// SitemapEvent reports the outcome of processing one sitemap. Progress
// reporting is a subscriber concern; the crawler itself only returns Result.
type SitemapEvent struct {
	Ref   SitemapRef
	Mode  sitemap.ParseMode
	URLs  int
	Error string
}

// Result is the aggregate outcome of one traversal, immutable once returned.
type Result struct {
	// StoreURLs holds deduplicated store URLs in first-discovery order
	// across leaves, in the order leaves complete.
	StoreURLs []string `json:"store_urls"`
	// FailedSitemaps maps each failed sitemap to a human-readable reason.
	FailedSitemaps map[SitemapRef]string `json:"failed_sitemaps,omitempty"`
	// TotalSitemapsVisited counts every fetched sitemap, indices included.
	TotalSitemapsVisited int `json:"total_sitemaps_visited"`
	// ParseModes records which parse tier succeeded for each fetched sitemap.
	ParseModes map[string]sitemap.ParseMode `json:"parse_modes"`
}

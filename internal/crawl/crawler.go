// Package crawl walks a sitemap hierarchy from a root index, hands each
// payload through decode and parse, and aggregates store URLs with per-leaf
// failure reporting.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/storecrawl/storemap/internal/sitemap"
	"github.com/storecrawl/storemap/internal/util"
)

// ErrRootResolution marks a failure to fetch, decode or parse the root
// index. Unlike leaf failures it is fatal: no leaves can be discovered
// without the root.
var ErrRootResolution = errors.New("root sitemap resolution failed")

// Crawler represents a sitemap crawler with configuration and an injected
// fetch capability
type Crawler struct {
	fetcher Fetcher
	config  *Config

	// OnSitemap, when set, receives an event after each sitemap completes.
	// It is called concurrently from worker goroutines and must be safe for
	// concurrent use.
	OnSitemap func(SitemapEvent)
}

// New creates a new Crawler instance with the given fetcher and
// configuration. If config is nil, default configuration is used.
func New(fetcher Fetcher, config *Config) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.MaxDepth < 1 {
		config.MaxDepth = 1
	}
	return &Crawler{fetcher: fetcher, config: config}
}

// Config returns the Crawler's configuration.
func (c *Crawler) Config() *Config {
	return c.config
}

// Crawl traverses the sitemap hierarchy rooted at rootURL and returns the
// deduplicated store URLs found across all leaves. Failures below the root
// are recorded in the result and never abort the run; cancellation stops new
// fetches and returns whatever has been accumulated.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) (*Result, error) {
	logger := log.With().
		Str("crawl_id", uuid.New().String()).
		Str("root", rootURL).
		Logger()
	logger.Debug().
		Str("marker", c.config.FilterMarker).
		Int("concurrency", c.config.Concurrency).
		Int("max_depth", c.config.MaxDepth).
		Msg("Starting sitemap crawl")

	result := &Result{
		StoreURLs:      []string{},
		FailedSitemaps: make(map[SitemapRef]string),
		ParseModes:     make(map[string]sitemap.ParseMode),
	}

	rootRef := SitemapRef{URL: rootURL, Depth: 0}
	rootDoc, err := c.processRef(ctx, rootRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootResolution, err)
	}
	result.TotalSitemapsVisited++
	result.ParseModes[rootURL] = rootDoc.Mode
	c.emit(SitemapEvent{Ref: rootRef, Mode: rootDoc.Mode, URLs: len(rootDoc.Entries)})

	// Shared across workers; visited itself is only touched between waves.
	var mu sync.Mutex
	seen := make(map[string]bool)
	visited := map[string]bool{util.NormaliseURL(rootURL): true}

	recordLeaf := func(doc *sitemap.Document) int {
		urls := sitemap.FilterStoreURLs(doc.Entries, c.config.FilterMarker)
		mu.Lock()
		defer mu.Unlock()
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				result.StoreURLs = append(result.StoreURLs, u)
			}
		}
		return len(urls)
	}

	var frontier []SitemapRef
	if rootDoc.IsIndex {
		frontier = c.childRefs(rootDoc.Entries, 1, visited)
	} else {
		// The root is itself a urlset leaf.
		recordLeaf(rootDoc)
	}

	sem := semaphore.NewWeighted(int64(c.config.Concurrency))

	for len(frontier) > 0 {
		children := make([][]string, len(frontier))
		var wg sync.WaitGroup
		cancelled := false

		for i, ref := range frontier {
			// Acquiring here, in frontier order, is what makes a
			// concurrency-1 run deterministic: the next fetch cannot start
			// until the previous worker releases the slot.
			if err := sem.Acquire(ctx, 1); err != nil {
				cancelled = true
				break
			}

			wg.Add(1)
			go func(i int, ref SitemapRef) {
				defer wg.Done()
				defer sem.Release(1)

				doc, err := c.processRef(ctx, ref)

				mu.Lock()
				result.TotalSitemapsVisited++
				mu.Unlock()

				if err != nil {
					logger.Warn().
						Err(err).
						Str("url", ref.URL).
						Int("depth", ref.Depth).
						Msg("Failed to process sitemap, continuing crawl")
					mu.Lock()
					result.FailedSitemaps[ref] = err.Error()
					mu.Unlock()
					c.emit(SitemapEvent{Ref: ref, Error: err.Error()})
					return
				}

				mu.Lock()
				result.ParseModes[ref.URL] = doc.Mode
				mu.Unlock()

				matched := 0
				if doc.IsIndex {
					children[i] = doc.Entries
				} else {
					matched = recordLeaf(doc)
				}

				logger.Debug().
					Str("url", ref.URL).
					Int("depth", ref.Depth).
					Bool("is_index", doc.IsIndex).
					Str("parse_mode", doc.Mode.String()).
					Int("entries", len(doc.Entries)).
					Int("matched", matched).
					Msg("Processed sitemap")
				c.emit(SitemapEvent{Ref: ref, Mode: doc.Mode, URLs: matched})
			}(i, ref)
		}

		wg.Wait()

		if cancelled {
			logger.Info().
				Int("store_urls", len(result.StoreURLs)).
				Msg("Crawl cancelled, returning partial result")
			return result, nil
		}

		var next []SitemapRef
		for i, locs := range children {
			next = append(next, c.childRefs(locs, frontier[i].Depth+1, visited)...)
		}
		frontier = next
	}

	logger.Info().
		Int("store_urls", len(result.StoreURLs)).
		Int("sitemaps_visited", result.TotalSitemapsVisited).
		Int("failed_sitemaps", len(result.FailedSitemaps)).
		Msg("Crawl complete")

	return result, nil
}

// Resolve walks the index hierarchy rooted at rootURL and returns the leaf
// sitemaps, i.e. the documents whose root is a urlset. Children that fail to
// fetch or parse are skipped with a warning; only root failure is fatal.
func (c *Crawler) Resolve(ctx context.Context, rootURL string) ([]SitemapRef, error) {
	rootRef := SitemapRef{URL: rootURL, Depth: 0}
	doc, err := c.processRef(ctx, rootRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootResolution, err)
	}
	if !doc.IsIndex {
		return []SitemapRef{rootRef}, nil
	}

	visited := map[string]bool{util.NormaliseURL(rootURL): true}
	queue := c.childRefs(doc.Entries, 1, visited)

	var leaves []SitemapRef
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return leaves, err
		}
		ref := queue[0]
		queue = queue[1:]

		doc, err := c.processRef(ctx, ref)
		if err != nil {
			log.Warn().
				Err(err).
				Str("url", ref.URL).
				Msg("Failed to resolve child sitemap, skipping")
			continue
		}
		if doc.IsIndex {
			queue = append(queue, c.childRefs(doc.Entries, ref.Depth+1, visited)...)
		} else {
			leaves = append(leaves, ref)
		}
	}
	return leaves, nil
}

// processRef runs the fetch, decode and parse steps for one sitemap.
func (c *Crawler) processRef(ctx context.Context, ref SitemapRef) (*sitemap.Document, error) {
	body, err := c.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	text, err := sitemap.Decode(ref.URL, body)
	if err != nil {
		return nil, err
	}
	return sitemap.Parse(text, c.config.FilterMarker)
}

// childRefs turns child locs into refs at the given depth, honouring the
// depth bound and the visited set. The visited guard is what terminates a
// cycle when an index re-references itself or an ancestor.
func (c *Crawler) childRefs(locs []string, depth int, visited map[string]bool) []SitemapRef {
	if depth > c.config.MaxDepth {
		log.Debug().
			Int("depth", depth).
			Int("max_depth", c.config.MaxDepth).
			Int("skipped", len(locs)).
			Msg("Depth bound reached, skipping child sitemaps")
		return nil
	}

	var refs []SitemapRef
	for _, loc := range locs {
		key := util.NormaliseURL(loc)
		if key == "" {
			log.Warn().Str("url", loc).Msg("Invalid child sitemap URL, skipping")
			continue
		}
		if visited[key] {
			continue
		}
		visited[key] = true
		refs = append(refs, SitemapRef{URL: loc, Depth: depth})
	}
	return refs
}

func (c *Crawler) emit(event SitemapEvent) {
	if c.OnSitemap != nil {
		c.OnSitemap(event)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/storecrawl/storemap/internal/crawl"
	"github.com/storecrawl/storemap/internal/fetch"
)

// NewRootCmd creates the root command for storemap.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storemap <root-sitemap-url>",
		Short: "Discover store pages from a sitemap hierarchy",
		Long: `storemap walks a sitemap index from the given root URL, decodes gzip or
plain payloads, recovers from malformed XML, and extracts the URLs whose path
contains the store marker. The result, including per-sitemap failures and the
parse tier used for each sitemap, is printed to stdout as JSON.

Examples:
  # Crawl with defaults
  storemap https://example.com/sitemap_index.xml

  # Custom store marker and higher concurrency
  storemap --marker /shop/ --concurrency 8 https://example.com/sitemap_index.xml`,
		Args:          cobra.ExactArgs(1),
		RunE:          runCrawl,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	crawlDefaults := crawl.DefaultConfig()
	fetchDefaults := fetch.DefaultConfig()

	cmd.Flags().StringP("marker", "m", crawlDefaults.FilterMarker,
		"Path segment that marks store listing pages")
	cmd.Flags().IntP("concurrency", "c", crawlDefaults.Concurrency,
		"Maximum number of in-flight sitemap fetches")
	cmd.Flags().IntP("depth", "d", crawlDefaults.MaxDepth,
		"Maximum index nesting depth below the root")
	cmd.Flags().DurationP("timeout", "t", fetchDefaults.Timeout,
		"Timeout for each sitemap request")
	cmd.Flags().IntP("retries", "r", fetchDefaults.RetryAttempts,
		"Attempts per sitemap request")
	cmd.Flags().Int("rate-limit", fetchDefaults.RateLimit,
		"Maximum requests per second, 0 disables limiting")
	cmd.Flags().Bool("progress", false,
		"Log per-sitemap progress while crawling")

	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	rootURL := args[0]
	marker, _ := cmd.Flags().GetString("marker")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	depth, _ := cmd.Flags().GetInt("depth")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	retries, _ := cmd.Flags().GetInt("retries")
	rateLimit, _ := cmd.Flags().GetInt("rate-limit")
	progress, _ := cmd.Flags().GetBool("progress")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetchConfig := fetch.DefaultConfig()
	fetchConfig.Timeout = timeout
	fetchConfig.RetryAttempts = retries
	fetchConfig.RateLimit = rateLimit

	crawler := crawl.New(fetch.NewClient(fetchConfig), &crawl.Config{
		FilterMarker: marker,
		Concurrency:  concurrency,
		MaxDepth:     depth,
	})

	if progress {
		crawler.OnSitemap = func(e crawl.SitemapEvent) {
			if e.Error != "" {
				log.Warn().
					Str("url", e.Ref.URL).
					Int("depth", e.Ref.Depth).
					Str("error", e.Error).
					Msg("Sitemap failed")
				return
			}
			log.Info().
				Str("url", e.Ref.URL).
				Int("depth", e.Ref.Depth).
				Str("parse_mode", e.Mode.String()).
				Int("store_urls", e.URLs).
				Msg("Sitemap processed")
		}
	}

	start := time.Now()
	result, err := crawler.Crawl(ctx, rootURL)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	log.Info().
		Int("store_urls", len(result.StoreURLs)).
		Int("sitemaps_visited", result.TotalSitemapsVisited).
		Int("failed_sitemaps", len(result.FailedSitemaps)).
		Dur("duration", time.Since(start)).
		Msg("Crawl finished")

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		sentry.Flush(2 * time.Second)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

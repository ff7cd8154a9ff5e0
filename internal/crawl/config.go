package crawl

// Config holds the configuration for a crawler instance
type Config struct {
	FilterMarker string // Path segment marking store listing pages
	Concurrency  int    // Maximum in-flight sitemap fetches
	MaxDepth     int    // Maximum index nesting depth below the root
}

// DefaultConfig returns a Config instance with default values. Legitimate
// sitemap hierarchies rarely exceed two tiers, so the depth bound stays
// small.
func DefaultConfig() *Config {
	return &Config{
		FilterMarker: "/trgovina/",
		Concurrency:  4,
		MaxDepth:     3,
	}
}

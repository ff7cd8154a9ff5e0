package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds the configuration for a fetch client
type Config struct {
	Timeout       time.Duration // Timeout for each request
	RetryAttempts int           // Number of attempts for failed requests
	RetryDelay    time.Duration // Delay between retry attempts
	RateLimit     int           // Maximum requests per second, 0 disables limiting
	UserAgent     string        // User agent string for requests
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    500 * time.Millisecond,
		RateLimit:     5,
		UserAgent:     "storemap/1.0 (+https://github.com/storecrawl/storemap)",
	}
}

// errClientStatus marks 4xx responses; retrying those is pointless.
var errClientStatus = errors.New("client error status")

// Client fetches sitemap payloads over HTTP with timeout, retry and rate
// limiting. Compression handling lives in the decoder, so the transport never
// negotiates Content-Encoding and bodies arrive exactly as served.
type Client struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new fetch client. If config is nil, default
// configuration is used.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 25,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     120 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DisableCompression:  true,
				ForceAttemptHTTP2:   true,
			},
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch performs a GET for targetURL and returns the raw body bytes. Failed
// attempts are retried up to the configured count, except 4xx responses and
// context cancellation which fail immediately.
func (c *Client) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	attempts := c.config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.fetchOnce(ctx, targetURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, errClientStatus) || ctx.Err() != nil {
			break
		}

		log.Debug().
			Err(err).
			Str("url", targetURL).
			Int("attempt", attempt).
			Msg("Sitemap fetch attempt failed")

		if attempt < attempts {
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", targetURL, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %d", errClientStatus, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

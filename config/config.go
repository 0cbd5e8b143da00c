package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds service configuration.
type Config struct {
	ExportDir    string
	DefaultRange string

	ListenAddr      string
	RequestDeadline time.Duration
	DefaultLimit    int
	MaxLimit        int

	EnrichConcurrency int
	ResolveTimeout    time.Duration
	OEmbedEndpoint    string
	OEmbedTimeout     time.Duration
	OEmbedRetries     int
	OEmbedBackoff     time.Duration
	OutboundRPS       float64
	OutboundBurst     int
	CacheSize         int
	UserAgent         string

	CategoryServiceURL   string
	CategoryServiceToken string
	CategoryTimeout      time.Duration

	NewProductWindow time.Duration

	PipelineBufferSize int
	BatchSize          int

	Verbose bool
}

// DefaultConfig returns conservative defaults. Enrichment runs one record at a
// time so the third-party endpoints are not rate limited.
func DefaultConfig() *Config {
	return &Config{
		ExportDir:    "data/kalodata",
		DefaultRange: "7d",

		ListenAddr:      ":8080",
		RequestDeadline: 2 * time.Minute,
		DefaultLimit:    20,
		MaxLimit:        100,

		EnrichConcurrency: 1,
		ResolveTimeout:    5 * time.Second,
		OEmbedEndpoint:    "https://www.tiktok.com/oembed",
		OEmbedTimeout:     20 * time.Second,
		OEmbedRetries:     1,
		OEmbedBackoff:     2 * time.Second,
		OutboundRPS:       0,
		OutboundBurst:     1,
		CacheSize:         2048,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",

		CategoryTimeout: 5 * time.Second,

		NewProductWindow: 30 * 24 * time.Hour,

		PipelineBufferSize: 512,
		BatchSize:          64,

		Verbose: false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ExportDir == "" {
		return fmt.Errorf("export dir cannot be empty")
	}
	if !ValidRange(c.DefaultRange) {
		return fmt.Errorf("default range %q must look like 7d or 30d", c.DefaultRange)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.RequestDeadline < 0 {
		return fmt.Errorf("request deadline cannot be negative")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max limit (%d) cannot be lower than default limit (%d)", c.MaxLimit, c.DefaultLimit)
	}
	if c.EnrichConcurrency <= 0 {
		return fmt.Errorf("enrich concurrency must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve timeout must be positive")
	}
	if c.OEmbedTimeout <= 0 {
		return fmt.Errorf("oembed timeout must be positive")
	}

	parsedURL, err := url.Parse(c.OEmbedEndpoint)
	if err != nil {
		return fmt.Errorf("invalid oembed endpoint: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("oembed endpoint must include a host")
	}

	if c.OEmbedRetries < 0 {
		return fmt.Errorf("oembed retries cannot be negative")
	}
	if c.OEmbedBackoff < 0 {
		return fmt.Errorf("oembed backoff cannot be negative")
	}
	if c.OutboundRPS < 0 {
		return fmt.Errorf("outbound rps cannot be negative")
	}
	if c.OutboundRPS > 0 && c.OutboundBurst <= 0 {
		return fmt.Errorf("outbound burst must be positive when rps is set")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.CategoryServiceURL != "" {
		u, err := url.Parse(c.CategoryServiceURL)
		if err != nil {
			return fmt.Errorf("invalid category service URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("category service URL must include a host")
		}
	}
	if c.CategoryTimeout <= 0 {
		return fmt.Errorf("category timeout must be positive")
	}
	if c.NewProductWindow < 0 {
		return fmt.Errorf("new product window cannot be negative")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}

// ValidRange reports whether label is a day-count range such as "7d".
func ValidRange(label string) bool {
	if len(label) < 2 || len(label) > 4 || label[len(label)-1] != 'd' {
		return false
	}
	for _, r := range label[:len(label)-1] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

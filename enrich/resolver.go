// Package enrich resolves TikTok share links and fetches oEmbed metadata for
// video records. Every outbound failure degrades to a nil field; nothing in
// this package returns an error to the request path.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/aluiziolira/hyppado-ingest/tiktok"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// Resolver follows short-link redirects to the final video URL.
type Resolver struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	cache     *lru.Cache[string, string]
	metrics   *Metrics
}

// NewResolver builds a resolver from cfg. limiter may be nil.
func NewResolver(cfg *config.Config, limiter *rate.Limiter, metrics *Metrics) *Resolver {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ResolveTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Resolver{
		client:    &http.Client{Transport: transport},
		timeout:   cfg.ResolveTimeout,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		cache:     newCache[string](cfg.CacheSize),
		metrics:   metrics,
	}
}

// WithTransport replaces the HTTP transport, mainly for tests.
func (r *Resolver) WithTransport(rt http.RoundTripper) {
	r.client.Transport = rt
}

// Resolve issues a GET for rawURL and returns the URL reached after following
// redirects. A timeout <= 0 uses the configured default. Any failure returns
// "", false.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, timeout time.Duration) (string, bool) {
	target := withScheme(rawURL)
	if target == "" {
		return "", false
	}
	if cached, ok := cacheGet(r.cache, target); ok {
		r.metrics.IncCacheHit("resolve")
		return cached, true
	}

	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	final, status, err := r.follow(ctx, target)
	if err != nil {
		classified := classifyError(err, status)
		r.metrics.IncError("resolve", classified)
		slog.Debug("short link resolution failed",
			slog.String("url", target),
			slog.String("category", errorTypeLabel(classified)),
			slog.Any("error", err),
		)
		return "", false
	}

	cacheAdd(r.cache, target, final)
	return final, true
}

func (r *Resolver) follow(ctx context.Context, target string) (string, int, error) {
	if err := waitLimiter(ctx, r.limiter); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	// Each call gets its own client value so the redirect hook can track the
	// last hop without shared state.
	final := req.URL.String()
	client := *r.client
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		final = next.URL.String()
		return nil
	}

	start := time.Now()
	r.metrics.IncRequest("resolve")
	resp, err := client.Do(req)
	r.metrics.ObserveDuration("resolve", time.Since(start))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	if resp.StatusCode >= http.StatusBadRequest {
		return "", resp.StatusCode, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return final, resp.StatusCode, nil
}

// ResolveLink classifies raw, resolves it only when it is a short link and
// canonicalizes the outcome. CanonicalURL is nil only when raw is empty.
func (r *Resolver) ResolveLink(ctx context.Context, raw, handle string) models.LinkResolution {
	res := models.LinkResolution{IsShort: tiktok.IsShortLink(raw)}
	if res.IsShort {
		if final, ok := r.Resolve(ctx, raw, 0); ok {
			res.ResolvedURL = &final
		}
	}
	res.CanonicalURL = tiktok.Canonicalize(raw, handle, res.ResolvedURL)
	return res
}

func withScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// NewLimiter returns the outbound limiter shared by the resolver and the
// oEmbed client, or nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func waitLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func newCache[V any](size int) *lru.Cache[string, V] {
	if size <= 0 {
		return nil
	}
	cache, err := lru.New[string, V](size)
	if err != nil {
		slog.Warn("cache disabled", slog.Int("size", size), slog.Any("error", err))
		return nil
	}
	return cache
}

func cacheGet[V any](cache *lru.Cache[string, V], key string) (V, bool) {
	if cache == nil {
		var zero V
		return zero, false
	}
	return cache.Get(key)
}

func cacheAdd[V any](cache *lru.Cache[string, V], key string, value V) {
	if cache == nil {
		return
	}
	cache.Add(key, value)
}

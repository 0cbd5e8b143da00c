package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

type oembedResponse struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

// OEmbedClient fetches video metadata from the TikTok oEmbed endpoint.
type OEmbedClient struct {
	endpoint  string
	retries   int
	backoff   time.Duration
	collector *colly.Collector
	limiter   *rate.Limiter
	cache     *lru.Cache[string, string]
	metrics   *Metrics
}

// NewOEmbedClient builds a client from cfg. limiter may be nil.
func NewOEmbedClient(cfg *config.Config, limiter *rate.Limiter, metrics *Metrics) *OEmbedClient {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.OEmbedTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.OEmbedTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		metrics.IncRequest("oembed")
	})
	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("status", r.StatusCode)
		r.Ctx.Put("body", r.Body)
		observeColly(metrics, r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
		observeColly(metrics, r)
	})

	retries := cfg.OEmbedRetries
	if retries < 0 {
		retries = 0
	}

	return &OEmbedClient{
		endpoint:  cfg.OEmbedEndpoint,
		retries:   retries,
		backoff:   cfg.OEmbedBackoff,
		collector: collector,
		limiter:   limiter,
		cache:     newCache[string](cfg.CacheSize),
		metrics:   metrics,
	}
}

func observeColly(metrics *Metrics, r *colly.Response) {
	if r.Ctx == nil {
		return
	}
	if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
		metrics.ObserveDuration("oembed", time.Since(start))
	}
}

// WithTransport replaces the collector transport, mainly for tests.
func (c *OEmbedClient) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// FetchMetadata returns the thumbnail for videoURL. A failed attempt is
// retried after the configured backoff; when every attempt fails the result
// carries a nil thumbnail. It never fails.
func (c *OEmbedClient) FetchMetadata(ctx context.Context, videoURL string) models.OEmbedResult {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return models.OEmbedResult{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if thumb, ok := cacheGet(c.cache, videoURL); ok {
		c.metrics.IncCacheHit("oembed")
		return models.OEmbedResult{ThumbnailURL: &thumb}
	}

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.IncRetries()
			if !sleepContext(ctx, c.backoff) {
				break
			}
		}

		thumb, err := c.fetchOnce(ctx, videoURL)
		if err == nil {
			cacheAdd(c.cache, videoURL, thumb)
			c.metrics.IncThumbnail()
			return models.OEmbedResult{ThumbnailURL: &thumb}
		}

		c.metrics.IncError("oembed", err)
		slog.Debug("oembed attempt failed",
			slog.String("url", videoURL),
			slog.Int("attempt", attempt+1),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	slog.Warn("oembed metadata unavailable", slog.String("url", videoURL))
	return models.OEmbedResult{}
}

func (c *OEmbedClient) requestURL(videoURL string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse oembed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("url", videoURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type attemptResult struct {
	thumb string
	err   error
}

// fetchOnce runs a single request. The collector enforces the per-attempt
// timeout; ctx only abandons the wait.
func (c *OEmbedClient) fetchOnce(ctx context.Context, videoURL string) (string, error) {
	if err := waitLimiter(ctx, c.limiter); err != nil {
		return "", classifyError(err, 0)
	}
	target, err := c.requestURL(videoURL)
	if err != nil {
		return "", err
	}

	// On cancellation the request keeps running until OEmbedTimeout; the
	// buffered channel lets it finish without a reader.
	done := make(chan attemptResult, 1)
	go func() {
		thumb, err := c.request(target)
		done <- attemptResult{thumb: thumb, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrTimeout{Err: ctx.Err()}
	case res := <-done:
		return res.thumb, res.err
	}
}

func (c *OEmbedClient) request(target string) (string, error) {
	reqCtx := colly.NewContext()
	hdr := http.Header{}
	hdr.Set("Accept", "application/json")

	err := c.collector.Request(http.MethodGet, target, nil, reqCtx, hdr)
	status, _ := reqCtx.GetAny("status").(int)
	if err != nil {
		return "", classifyError(err, status)
	}
	if status < 200 || status >= 300 {
		return "", classifyError(nil, status)
	}

	body, _ := reqCtx.GetAny("body").([]byte)
	var payload oembedResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ErrMalformed{Err: fmt.Errorf("decode oembed: %w", err)}
	}
	thumb := strings.TrimSpace(payload.ThumbnailURL)
	if thumb == "" {
		return "", ErrMalformed{Err: errors.New("empty thumbnail_url")}
	}
	return thumb, nil
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

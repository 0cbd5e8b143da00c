package enrich

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEndpoint = "https://oembed.test/oembed"
	fullVideoURL = "https://www.tiktok.com/@ana/video/7301234567890123456"
	shortLinkURL = "https://vm.tiktok.com/ZMabc123/"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.OEmbedEndpoint = testEndpoint
	cfg.OEmbedTimeout = 200 * time.Millisecond
	cfg.OEmbedBackoff = 20 * time.Millisecond
	cfg.ResolveTimeout = 100 * time.Millisecond
	return cfg
}

func redirectTo(location string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
		resp.Header = http.Header{"Location": []string{location}}
		resp.Request = req
		return resp, nil
	}
}

func hang(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "upstream_status"},
		{name: "malformed", err: ErrMalformed{Err: errors.New("bad json")}, statusCode: 0, expected: "malformed"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errorTypeLabel(classifyError(tt.err, tt.statusCode)))
		})
	}
}

func TestResolveFollowsRedirects(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", shortLinkURL, redirectTo("https://www.tiktok.com/t/hop"))
	transport.RegisterResponder("GET", "https://www.tiktok.com/t/hop", redirectTo(fullVideoURL+"?is_from_webapp=1"))
	transport.RegisterResponder("GET", fullVideoURL, httpmock.NewStringResponder(http.StatusOK, "<html></html>"))

	r := NewResolver(testConfig(), nil, NewMetrics())
	r.WithTransport(transport)

	final, ok := r.Resolve(context.Background(), shortLinkURL, 0)

	require.True(t, ok)
	assert.Equal(t, fullVideoURL+"?is_from_webapp=1", final)
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestResolveCachesSuccessOnly(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", shortLinkURL, redirectTo(fullVideoURL))
	transport.RegisterResponder("GET", fullVideoURL, httpmock.NewStringResponder(http.StatusOK, ""))
	transport.RegisterResponder("GET", "https://vm.tiktok.com/ZMgone/", httpmock.NewStringResponder(http.StatusNotFound, ""))

	metrics := NewMetrics()
	r := NewResolver(testConfig(), nil, metrics)
	r.WithTransport(transport)

	for i := 0; i < 2; i++ {
		_, ok := r.Resolve(context.Background(), shortLinkURL, 0)
		require.True(t, ok)
		_, ok = r.Resolve(context.Background(), "https://vm.tiktok.com/ZMgone/", 0)
		require.False(t, ok)
	}

	info := transport.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+shortLinkURL])
	assert.Equal(t, 2, info["GET https://vm.tiktok.com/ZMgone/"])
	assert.Equal(t, 1.0, counterValue(t, metrics, "hyppado_cache_hits_total"))
}

func TestResolveTooManyRedirects(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", shortLinkURL, redirectTo(shortLinkURL))

	r := NewResolver(testConfig(), nil, nil)
	r.WithTransport(transport)

	_, ok := r.Resolve(context.Background(), shortLinkURL, 0)

	assert.False(t, ok)
}

func TestResolveTimeout(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", shortLinkURL, hang)

	r := NewResolver(testConfig(), nil, nil)
	r.WithTransport(transport)

	start := time.Now()
	_, ok := r.Resolve(context.Background(), shortLinkURL, 30*time.Millisecond)

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveLinkShortLinkTimesOut(t *testing.T) {
	raw := "https://vm.tiktok.com/ZMabc123/?item_id=7301234567890123456"
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "https://vm.tiktok.com/ZMabc123/", hang)

	r := NewResolver(testConfig(), nil, nil)
	r.WithTransport(transport)

	res := r.ResolveLink(context.Background(), raw, "ana")

	assert.True(t, res.IsShort)
	assert.Nil(t, res.ResolvedURL)
	require.NotNil(t, res.CanonicalURL)
	assert.Equal(t, fullVideoURL, *res.CanonicalURL)
}

func TestResolveLinkSkipsFullLinks(t *testing.T) {
	transport := httpmock.NewMockTransport()

	r := NewResolver(testConfig(), nil, nil)
	r.WithTransport(transport)

	res := r.ResolveLink(context.Background(), fullVideoURL+"?lang=pt-BR", "ana")

	assert.False(t, res.IsShort)
	require.NotNil(t, res.CanonicalURL)
	assert.Equal(t, fullVideoURL, *res.CanonicalURL)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestFetchMetadataSuccess(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("url") != fullVideoURL {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"title":         "Garrafa",
				"thumbnail_url": "https://p16.tiktokcdn.test/thumb.jpg",
			})
		})

	metrics := NewMetrics()
	c := NewOEmbedClient(testConfig(), nil, metrics)
	c.WithTransport(transport)

	res := c.FetchMetadata(context.Background(), fullVideoURL)

	require.NotNil(t, res.ThumbnailURL)
	assert.Equal(t, "https://p16.tiktokcdn.test/thumb.jpg", *res.ThumbnailURL)
	assert.Equal(t, 1.0, counterValue(t, metrics, "hyppado_thumbnails_found_total"))

	again := c.FetchMetadata(context.Background(), fullVideoURL)
	require.NotNil(t, again.ThumbnailURL)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestFetchMetadataRetriesOnce(t *testing.T) {
	var calls int32
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"thumbnail_url": "https://x/y.jpg"})
		})

	metrics := NewMetrics()
	c := NewOEmbedClient(testConfig(), nil, metrics)
	c.WithTransport(transport)

	res := c.FetchMetadata(context.Background(), fullVideoURL)

	require.NotNil(t, res.ThumbnailURL)
	assert.Equal(t, "https://x/y.jpg", *res.ThumbnailURL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, counterValue(t, metrics, "hyppado_oembed_retries_total"))
}

func TestFetchMetadataAlwaysFailing(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	metrics := NewMetrics()
	c := NewOEmbedClient(cfg, nil, metrics)
	c.WithTransport(transport)

	start := time.Now()
	res := c.FetchMetadata(context.Background(), fullVideoURL)
	elapsed := time.Since(start)

	assert.Nil(t, res.ThumbnailURL)
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.LessOrEqual(t, elapsed, 2*cfg.OEmbedTimeout+cfg.OEmbedBackoff+100*time.Millisecond)
	assert.Equal(t, 2.0, counterValue(t, metrics, "hyppado_outbound_errors_total"))

	// Failures are not cached.
	c.FetchMetadata(context.Background(), fullVideoURL)
	assert.Equal(t, 4, transport.GetTotalCallCount())
}

func TestFetchMetadataMalformedBody(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, httpmock.NewStringResponder(http.StatusOK, "not json"))

	c := NewOEmbedClient(testConfig(), nil, nil)
	c.WithTransport(transport)

	res := c.FetchMetadata(context.Background(), fullVideoURL)

	assert.Nil(t, res.ThumbnailURL)
	assert.Equal(t, 2, transport.GetTotalCallCount())
}

func TestFetchMetadataHonoursCancellation(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testEndpoint, httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	cfg := testConfig()
	cfg.OEmbedBackoff = time.Minute
	c := NewOEmbedClient(cfg, nil, nil)
	c.WithTransport(transport)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := c.FetchMetadata(ctx, fullVideoURL)

	assert.Nil(t, res.ThumbnailURL)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchMetadataEmptyURL(t *testing.T) {
	transport := httpmock.NewMockTransport()
	c := NewOEmbedClient(testConfig(), nil, nil)
	c.WithTransport(transport)

	assert.Nil(t, c.FetchMetadata(context.Background(), "  ").ThumbnailURL)
	assert.Zero(t, transport.GetTotalCallCount())
}

func TestEnrichVideos(t *testing.T) {
	cfg := testConfig()
	cfg.EnrichConcurrency = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", shortLinkURL, redirectTo("https://www.tiktok.com/@bia/video/7309999999999999999?_r=1"))
	transport.RegisterResponder("GET", "https://www.tiktok.com/@bia/video/7309999999999999999", httpmock.NewStringResponder(http.StatusOK, ""))
	transport.RegisterResponder("GET", testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			id := req.URL.Query().Get("url")
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"thumbnail_url": "https://thumbs.test/" + id[len(id)-4:] + ".jpg"})
		})

	e := NewEnricher(cfg, NewMetrics())
	e.Resolver.WithTransport(transport)
	e.OEmbed.WithTransport(transport)

	existing := "https://thumbs.test/kept.jpg"
	videos := []models.VideoRecord{
		{ID: "1", Title: "short", CreatorHandle: "bia", TikTokURL: shortLinkURL},
		{ID: "2", Title: "full", CreatorHandle: "ana", TikTokURL: fullVideoURL + "?lang=pt"},
		{ID: "3", Title: "no link", CreatorHandle: "caio"},
		{ID: "4", Title: "has thumb", CreatorHandle: "ana", TikTokURL: fullVideoURL, ThumbnailURL: &existing},
	}

	out := e.EnrichVideos(context.Background(), videos)

	require.Len(t, out, 4)
	for i := range videos {
		assert.Equal(t, videos[i].ID, out[i].ID)
	}

	assert.Equal(t, "https://www.tiktok.com/@bia/video/7309999999999999999", out[0].TikTokURL)
	require.NotNil(t, out[0].ThumbnailURL)
	assert.Equal(t, "https://thumbs.test/9999.jpg", *out[0].ThumbnailURL)

	assert.Equal(t, fullVideoURL, out[1].TikTokURL)
	require.NotNil(t, out[1].ThumbnailURL)
	assert.Equal(t, "https://thumbs.test/3456.jpg", *out[1].ThumbnailURL)

	assert.Empty(t, out[2].TikTokURL)
	assert.Nil(t, out[2].ThumbnailURL)

	assert.Equal(t, &existing, out[3].ThumbnailURL)

	assert.Equal(t, shortLinkURL, videos[0].TikTokURL, "input slice must not be modified")
	assert.Equal(t, 4.0, counterValue(t, e.Metrics, "hyppado_records_enriched_total"))
}

func TestEnrichVideosCancelled(t *testing.T) {
	e := NewEnricher(testConfig(), nil)
	transport := httpmock.NewMockTransport()
	e.Resolver.WithTransport(transport)
	e.OEmbed.WithTransport(transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	videos := []models.VideoRecord{{ID: "1", TikTokURL: shortLinkURL}}
	out := e.EnrichVideos(ctx, videos)

	require.Len(t, out, 1)
	assert.Equal(t, videos[0], out[0])
	assert.Zero(t, transport.GetTotalCallCount())
}

package enrich

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/aluiziolira/hyppado-ingest/pipeline"
)

// Enricher fills canonical links and thumbnails on video records.
type Enricher struct {
	Resolver    *Resolver
	OEmbed      *OEmbedClient
	Metrics     *Metrics
	concurrency int
}

// NewEnricher wires a resolver and oEmbed client sharing one outbound
// limiter and one metrics registry.
func NewEnricher(cfg *config.Config, metrics *Metrics) *Enricher {
	if metrics == nil {
		metrics = NewMetrics()
	}
	limiter := NewLimiter(cfg.OutboundRPS, cfg.OutboundBurst)
	return &Enricher{
		Resolver:    NewResolver(cfg, limiter, metrics),
		OEmbed:      NewOEmbedClient(cfg, limiter, metrics),
		Metrics:     metrics,
		concurrency: cfg.EnrichConcurrency,
	}
}

type enriched struct {
	video models.VideoRecord
	done  bool
}

// EnrichVideos returns a copy of videos, in the same order, with TikTokURL
// canonicalized and ThumbnailURL filled where the upstream allowed it.
// Records that could not be processed are returned unchanged.
func (e *Enricher) EnrichVideos(ctx context.Context, videos []models.VideoRecord) []models.VideoRecord {
	out := make([]models.VideoRecord, len(videos))
	copy(out, videos)
	if len(videos) == 0 {
		return out
	}

	concurrency := e.concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results, err := pipeline.RunBounded(ctx, videos, concurrency, e.enrichOne)
	if err != nil {
		slog.Warn("enrichment stopped early",
			slog.Int("records", len(videos)),
			slog.Any("error", err),
		)
	}
	for i, res := range results {
		if res.done {
			out[i] = res.video
		}
	}
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, video models.VideoRecord) enriched {
	e.Metrics.IncEnriched()

	link := e.Resolver.ResolveLink(ctx, video.TikTokURL, video.CreatorHandle)
	if link.CanonicalURL != nil {
		video.TikTokURL = *link.CanonicalURL
	}

	if video.ThumbnailURL == nil && video.TikTokURL != "" {
		meta := e.OEmbed.FetchMetadata(ctx, video.TikTokURL)
		video.ThumbnailURL = meta.ThumbnailURL
	}
	return enriched{video: video, done: true}
}

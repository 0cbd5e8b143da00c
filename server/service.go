package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/hyppado-ingest/categories"
	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/enrich"
	"github.com/aluiziolira/hyppado-ingest/export"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/aluiziolira/hyppado-ingest/parser"
)

// Query carries the list parameters shared by the kalodata endpoints.
type Query struct {
	Range    string
	Limit    int
	Search   string
	Category string
	Filter   string
}

// Page is the data payload of a list endpoint.
type Page[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Range string `json:"range"`
}

func emptyPage[T any](rangeLabel string) Page[T] {
	return Page[T]{Items: []T{}, Range: rangeLabel}
}

// Service reads, normalizes, filters and enriches export records. Errors
// come back alongside an empty page so handlers can fail open.
type Service struct {
	cfg        *config.Config
	reader     *export.Reader
	enricher   *enrich.Enricher
	categories *categories.Source
	metrics    *enrich.Metrics
	now        func() time.Time
}

// NewService wires the read path. enricher may be nil to serve records
// without outbound calls.
func NewService(cfg *config.Config, reader *export.Reader, enricher *enrich.Enricher, cats *categories.Source) *Service {
	var metrics *enrich.Metrics
	if enricher != nil {
		metrics = enricher.Metrics
	}
	return &Service{
		cfg:        cfg,
		reader:     reader,
		enricher:   enricher,
		categories: cats,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *Service) load(kind models.RecordKind, rangeLabel string) (parser.Result, error) {
	if !config.ValidRange(rangeLabel) {
		return parser.Result{Kind: kind}, fmt.Errorf("invalid range %q", rangeLabel)
	}
	key := models.ExportKey{Kind: kind, Range: rangeLabel}

	sheet, err := s.reader.ReadOrEmpty(key)
	if err != nil {
		return parser.Result{Kind: kind}, err
	}

	res := parser.Normalize(sheet, kind, parser.Options{
		ReferenceTime:    s.now(),
		NewProductWindow: s.cfg.NewProductWindow,
	})
	s.metrics.ObserveExport(string(kind), res.Len(), len(res.Skipped))
	return res, res.Err
}

// Videos returns the top videos by revenue, enriched in rank order.
func (s *Service) Videos(ctx context.Context, q Query) (Page[models.VideoRecord], error) {
	res, err := s.load(models.KindVideos, q.Range)
	if err != nil {
		return emptyPage[models.VideoRecord](q.Range), err
	}

	items := make([]models.VideoRecord, 0, len(res.Videos))
	for _, v := range res.Videos {
		productName := ""
		if v.Product != nil {
			productName = v.Product.Name
		}
		if parser.Matches(q.Search, v.Title, v.CreatorHandle, productName) {
			items = append(items, v)
		}
	}

	total := len(items)
	parser.SortVideosByRevenue(items)
	items = limit(items, q.Limit)
	if s.enricher != nil {
		items = s.enricher.EnrichVideos(ctx, items)
	}
	return Page[models.VideoRecord]{Items: items, Total: total, Range: q.Range}, nil
}

// Products returns products by revenue. Filter "new" prefers the
// new-products export and falls back to flagged rows of the products export
// when that export is missing, empty or unreadable.
func (s *Service) Products(ctx context.Context, q Query) (Page[models.ProductRecord], error) {
	var products []models.ProductRecord
	newOnly := q.Filter == "new"

	if newOnly {
		res, err := s.load(models.KindNewProducts, q.Range)
		if err != nil && !config.ValidRange(q.Range) {
			return emptyPage[models.ProductRecord](q.Range), err
		}
		if err != nil {
			slog.Warn("new-products export unusable, using flagged products",
				slog.String("range", q.Range),
				slog.Any("error", err),
			)
		}
		products = res.Products
	}
	if len(products) == 0 {
		res, err := s.load(models.KindProducts, q.Range)
		if err != nil {
			return emptyPage[models.ProductRecord](q.Range), err
		}
		products = res.Products
	}

	items := make([]models.ProductRecord, 0, len(products))
	for _, p := range products {
		if newOnly && !p.IsNew {
			continue
		}
		if q.Category != "" && !parser.Matches(q.Category, p.Category) {
			continue
		}
		if !parser.Matches(q.Search, p.Name, p.Category) {
			continue
		}
		items = append(items, p)
	}

	total := len(items)
	parser.SortProductsByRevenue(items)
	return Page[models.ProductRecord]{Items: limit(items, q.Limit), Total: total, Range: q.Range}, nil
}

// Creators returns creators by revenue.
func (s *Service) Creators(ctx context.Context, q Query) (Page[models.CreatorRecord], error) {
	res, err := s.load(models.KindCreators, q.Range)
	if err != nil {
		return emptyPage[models.CreatorRecord](q.Range), err
	}

	items := make([]models.CreatorRecord, 0, len(res.Creators))
	for _, c := range res.Creators {
		if parser.Matches(q.Search, c.Name, c.Handle) {
			items = append(items, c)
		}
	}

	total := len(items)
	parser.SortCreatorsByRevenue(items)
	return Page[models.CreatorRecord]{Items: limit(items, q.Limit), Total: total, Range: q.Range}, nil
}

// Categories lists categories and their origin.
func (s *Service) Categories(ctx context.Context) ([]models.Category, string) {
	if s.categories == nil {
		items, err := categories.Bundled()
		if err != nil {
			return []models.Category{}, categories.OriginBundled
		}
		return items, categories.OriginBundled
	}
	return s.categories.List(ctx)
}

// Ranges lists the exports present on disk.
func (s *Service) Ranges() ([]models.ExportKey, error) {
	keys, err := s.reader.Available()
	if keys == nil {
		keys = []models.ExportKey{}
	}
	return keys, err
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

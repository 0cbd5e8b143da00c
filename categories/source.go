// Package categories lists product categories from the upstream category
// service, falling back to a bundled list.
package categories

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/gocolly/colly/v2"
	"gopkg.in/yaml.v3"
)

const (
	// OriginUpstream marks categories served by the category service.
	OriginUpstream = "upstream"
	// OriginBundled marks the embedded fallback list.
	OriginBundled = "bundled"
)

// ErrUnavailable is logged when the upstream could not be used.
var ErrUnavailable = errors.New("category service unavailable")

//go:embed defaults.yaml
var defaultsYAML []byte

// Bundled returns the embedded category list.
func Bundled() ([]models.Category, error) {
	var out []models.Category
	if err := yaml.Unmarshal(defaultsYAML, &out); err != nil {
		return nil, fmt.Errorf("decode bundled categories: %w", err)
	}
	return out, nil
}

// Source fetches categories from the upstream service.
type Source struct {
	baseURL   string
	token     string
	collector *colly.Collector
}

// NewSource builds a source from cfg. An empty CategoryServiceURL makes List
// serve the bundled list without network access.
func NewSource(cfg *config.Config) *Source {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.CategoryTimeout)

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("body", r.Body)
	})

	return &Source{
		baseURL:   strings.TrimRight(cfg.CategoryServiceURL, "/"),
		token:     cfg.CategoryServiceToken,
		collector: collector,
	}
}

// WithTransport replaces the collector transport, mainly for tests.
func (s *Source) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// List returns the categories and where they came from. It never fails: any
// upstream problem yields the bundled list.
func (s *Source) List(ctx context.Context) ([]models.Category, string) {
	if s.baseURL != "" {
		items, err := s.fetch(ctx)
		if err == nil {
			return items, OriginUpstream
		}
		slog.Warn("using bundled categories",
			slog.String("url", s.baseURL),
			slog.Any("error", fmt.Errorf("%w: %w", ErrUnavailable, err)),
		)
	}

	items, err := Bundled()
	if err != nil {
		slog.Error("bundled categories unreadable", slog.Any("error", err))
		return []models.Category{}, OriginBundled
	}
	return items, OriginBundled
}

type fetchResult struct {
	items []models.Category
	err   error
}

func (s *Source) fetch(ctx context.Context) ([]models.Category, error) {
	// An abandoned request still ends within CategoryTimeout.
	done := make(chan fetchResult, 1)
	go func() {
		items, err := s.request()
		done <- fetchResult{items: items, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.items, res.err
	}
}

func (s *Source) request() ([]models.Category, error) {
	hdr := http.Header{}
	hdr.Set("Accept", "application/json")
	if s.token != "" {
		hdr.Set("Authorization", "Bearer "+s.token)
	}

	reqCtx := colly.NewContext()
	if err := s.collector.Request(http.MethodGet, s.baseURL+"/categories", nil, reqCtx, hdr); err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}

	body, _ := reqCtx.GetAny("body").([]byte)
	items, err := decode(body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("upstream returned no categories")
	}
	return items, nil
}

// decode accepts a bare array or an object wrapping it in "items",
// "categories" or "data".
func decode(body []byte) ([]models.Category, error) {
	var list []models.Category
	if err := json.Unmarshal(body, &list); err == nil {
		return clean(list), nil
	}

	var wrapped struct {
		Items      []models.Category `json:"items"`
		Categories []models.Category `json:"categories"`
		Data       []models.Category `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	switch {
	case len(wrapped.Items) > 0:
		return clean(wrapped.Items), nil
	case len(wrapped.Categories) > 0:
		return clean(wrapped.Categories), nil
	default:
		return clean(wrapped.Data), nil
	}
}

func clean(in []models.Category) []models.Category {
	out := make([]models.Category, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		if c.ID == "" {
			c.ID = c.Slug
		}
		out = append(out, c)
	}
	return out
}

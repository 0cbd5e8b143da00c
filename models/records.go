package models

import (
	"strconv"
	"strings"
)

// Record is implemented by every DTO so output writers can stay generic.
// DedupKey identifies the same video, product or creator across rows of an
// export, which RecordID does not since ids include the row position.
type Record interface {
	RecordID() string
	DedupKey() string
	CSVHeader() []string
	CSVRow() []string
}

// VideoRecord represents a trending video row.
type VideoRecord struct {
	ID            string         `csv:"id" json:"id"`
	Title         string         `csv:"title" json:"title"`
	CreatorHandle string         `csv:"creator_handle" json:"creatorHandle"`
	TikTokURL     string         `csv:"tiktok_url" json:"tiktokUrl"`
	ThumbnailURL  *string        `csv:"thumbnail_url" json:"thumbnailUrl"`
	Duration      string         `csv:"duration" json:"duration"`
	Views         int64          `csv:"views" json:"views"`
	Sales         int64          `csv:"sales" json:"sales"`
	RevenueBRL    float64        `csv:"revenue_brl" json:"revenueBRL"`
	ROAS          float64        `csv:"roas" json:"roas"`
	Product       *ProductRecord `csv:"-" json:"product"`
}

// ProductRecord represents a product row, or the product a video promotes.
type ProductRecord struct {
	ID                    string  `csv:"id" json:"id"`
	Name                  string  `csv:"name" json:"name"`
	Category              string  `csv:"category" json:"category"`
	PriceBRL              float64 `csv:"price_brl" json:"priceBRL"`
	IsNew                 bool    `csv:"is_new" json:"isNew"`
	LaunchDate            *string `csv:"launch_date" json:"launchDate,omitempty"`
	Sales                 int64   `csv:"sales" json:"sales"`
	RevenueBRL            float64 `csv:"revenue_brl" json:"revenueBRL"`
	CreatorCount          int64   `csv:"creator_count" json:"creatorCount"`
	CreatorConversionRate float64 `csv:"creator_conversion_rate" json:"creatorConversionRate"`
	KalodataURL           string  `csv:"kalodata_url" json:"kalodataUrl"`
	TikTokURL             string  `csv:"tiktok_url" json:"tiktokUrl"`
}

// CreatorRecord represents a creator row.
type CreatorRecord struct {
	ID          string  `csv:"id" json:"id"`
	Name        string  `csv:"name" json:"name"`
	Handle      string  `csv:"handle" json:"handle"`
	Followers   int64   `csv:"followers" json:"followers"`
	Views       int64   `csv:"views" json:"views"`
	VideoCount  int64   `csv:"video_count" json:"videoCount"`
	RevenueBRL  float64 `csv:"revenue_brl" json:"revenueBRL"`
	TikTokURL   string  `csv:"tiktok_url" json:"tiktokUrl"`
	KalodataURL string  `csv:"kalodata_url" json:"kalodataUrl"`
}

// LinkResolution is the outcome of classifying and resolving a video link.
// ResolvedURL stays nil when the link was not short or resolution failed.
type LinkResolution struct {
	IsShort      bool    `json:"isShort"`
	ResolvedURL  *string `json:"resolvedUrl"`
	CanonicalURL *string `json:"canonicalUrl"`
}

// OEmbedResult carries the only oEmbed field the dashboard uses.
type OEmbedResult struct {
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// Category is a product category offered as a dashboard filter.
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Slug string `json:"slug" yaml:"slug"`
}

func (v VideoRecord) RecordID() string { return v.ID }

func (v VideoRecord) DedupKey() string {
	if v.TikTokURL == "" {
		return v.ID
	}
	return "video|" + v.TikTokURL
}

func (v VideoRecord) CSVHeader() []string {
	return []string{"id", "title", "creator_handle", "tiktok_url", "thumbnail_url", "duration", "views", "sales", "revenue_brl", "roas", "product_name"}
}

func (v VideoRecord) CSVRow() []string {
	productName := ""
	if v.Product != nil {
		productName = v.Product.Name
	}
	return []string{
		v.ID,
		v.Title,
		v.CreatorHandle,
		v.TikTokURL,
		deref(v.ThumbnailURL),
		v.Duration,
		strconv.FormatInt(v.Views, 10),
		strconv.FormatInt(v.Sales, 10),
		formatFloat(v.RevenueBRL),
		formatFloat(v.ROAS),
		productName,
	}
}

func (p ProductRecord) RecordID() string { return p.ID }

func (p ProductRecord) DedupKey() string {
	if p.Name == "" {
		return p.ID
	}
	return "product|" + strings.ToLower(p.Name) + "|" + p.TikTokURL
}

func (p ProductRecord) CSVHeader() []string {
	return []string{"id", "name", "category", "price_brl", "is_new", "launch_date", "sales", "revenue_brl", "creator_count", "creator_conversion_rate", "kalodata_url", "tiktok_url"}
}

func (p ProductRecord) CSVRow() []string {
	return []string{
		p.ID,
		p.Name,
		p.Category,
		formatFloat(p.PriceBRL),
		strconv.FormatBool(p.IsNew),
		deref(p.LaunchDate),
		strconv.FormatInt(p.Sales, 10),
		formatFloat(p.RevenueBRL),
		strconv.FormatInt(p.CreatorCount, 10),
		formatFloat(p.CreatorConversionRate),
		p.KalodataURL,
		p.TikTokURL,
	}
}

func (c CreatorRecord) RecordID() string { return c.ID }

func (c CreatorRecord) DedupKey() string {
	if c.Handle == "" {
		return c.ID
	}
	return "creator|" + strings.ToLower(c.Handle)
}

func (c CreatorRecord) CSVHeader() []string {
	return []string{"id", "name", "handle", "followers", "views", "video_count", "revenue_brl", "tiktok_url", "kalodata_url"}
}

func (c CreatorRecord) CSVRow() []string {
	return []string{
		c.ID,
		c.Name,
		c.Handle,
		strconv.FormatInt(c.Followers, 10),
		strconv.FormatInt(c.Views, 10),
		strconv.FormatInt(c.VideoCount, 10),
		formatFloat(c.RevenueBRL),
		c.TikTokURL,
		c.KalodataURL,
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package parser

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/aluiziolira/hyppado-ingest/models"
	"github.com/google/uuid"
)

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hyppado.com/kalodata"))

// Options tunes normalization. A zero ReferenceTime disables the launch-date
// rule for isNew, which keeps the output a pure function of the input rows.
type Options struct {
	ReferenceTime    time.Time
	NewProductWindow time.Duration
}

// RowIssue records a row that was skipped.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result holds the records of one normalized export, in input order.
// Only the slice matching the kind is populated.
type Result struct {
	Kind     models.RecordKind
	Videos   []models.VideoRecord
	Products []models.ProductRecord
	Creators []models.CreatorRecord
	Skipped  []RowIssue
	Err      error
}

// Len returns the number of records produced.
func (r Result) Len() int {
	return len(r.Videos) + len(r.Products) + len(r.Creators)
}

// Normalize converts the rows of sheet into records of kind. It never fails
// as a whole because of one row: rows that panic are skipped and reported in
// Result.Skipped. A header missing required columns yields an empty result
// with Err set.
func Normalize(sheet models.Sheet, kind models.RecordKind, opts Options) Result {
	res := Result{Kind: kind}
	if len(sheet.Rows) == 0 {
		return res
	}

	switch kind {
	case models.KindVideos:
		res.Videos, res.Skipped, res.Err = normalizeRows(VideoSchema, sheet, func(i int, r *videoRow) models.VideoRecord {
			return finishVideo(i, r)
		})
	case models.KindProducts, models.KindNewProducts:
		res.Products, res.Skipped, res.Err = normalizeRows(ProductSchema, sheet, func(i int, r *productRow) models.ProductRecord {
			return finishProduct(kind, i, r, opts)
		})
	case models.KindCreators:
		res.Creators, res.Skipped, res.Err = normalizeRows(CreatorSchema, sheet, func(i int, r *creatorRow) models.CreatorRecord {
			return finishCreator(i, r)
		})
	default:
		res.Err = fmt.Errorf("unknown record kind %q", kind)
	}

	if res.Err != nil {
		slog.Error("normalizing export failed",
			slog.String("kind", string(kind)),
			slog.Any("error", res.Err),
		)
	}
	for _, issue := range res.Skipped {
		slog.Warn("skipped export row",
			slog.String("kind", string(kind)),
			slog.Int("row", issue.Row),
			slog.String("reason", issue.Reason),
		)
	}
	return res
}

func normalizeRows[T any, R any](schema *Schema[T], sheet models.Sheet, finish func(int, *T) R) ([]R, []RowIssue, error) {
	binding, err := schema.Bind(sheet.Header)
	if err != nil {
		return nil, nil, err
	}

	out := make([]R, 0, len(sheet.Rows))
	var skipped []RowIssue
	for i, row := range sheet.Rows {
		rec, err := normalizeRow(binding, i, row, finish)
		if err != nil {
			// Row numbers are 1-based spreadsheet rows; the header is row 1.
			skipped = append(skipped, RowIssue{Row: i + 2, Reason: err.Error()})
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

func normalizeRow[T any, R any](binding Binding[T], index int, row models.RawRow, finish func(int, *T) R) (rec R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var dst T
	binding.Apply(&dst, row)
	return finish(index, &dst), nil
}

func recordID(kind models.RecordKind, index int, parts ...string) string {
	key := string(kind) + "|" + strconv.Itoa(index)
	for _, p := range parts {
		key += "|" + p
	}
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func finishVideo(index int, r *videoRow) models.VideoRecord {
	rec := r.rec
	rec.ID = recordID(models.KindVideos, index, rec.Title, rec.CreatorHandle, rec.TikTokURL)
	if r.product.Name != "" {
		product := r.product
		product.ID = recordID(models.KindProducts, -1, product.Name, product.Category)
		rec.Product = &product
	}
	return rec
}

func finishProduct(kind models.RecordKind, index int, r *productRow, opts Options) models.ProductRecord {
	rec := r.rec
	rec.ID = recordID(kind, index, rec.Name, rec.Category, rec.TikTokURL)

	switch {
	case r.newFlag != nil:
		rec.IsNew = *r.newFlag
	case kind == models.KindNewProducts:
		rec.IsNew = true
	case !opts.ReferenceTime.IsZero() && !r.launch.IsZero() && opts.NewProductWindow > 0:
		age := opts.ReferenceTime.Sub(r.launch)
		rec.IsNew = age >= 0 && age <= opts.NewProductWindow
	}
	return rec
}

func finishCreator(index int, r *creatorRow) models.CreatorRecord {
	rec := r.rec
	if rec.Name == "" {
		rec.Name = rec.Handle
	}
	rec.ID = recordID(models.KindCreators, index, rec.Handle)
	return rec
}

// SortVideosByRevenue orders videos by revenue, then sales, descending.
// The sort is stable so ties keep export order.
func SortVideosByRevenue(videos []models.VideoRecord) {
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].RevenueBRL != videos[j].RevenueBRL {
			return videos[i].RevenueBRL > videos[j].RevenueBRL
		}
		return videos[i].Sales > videos[j].Sales
	})
}

// SortProductsByRevenue orders products by revenue, then sales, descending.
func SortProductsByRevenue(products []models.ProductRecord) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].RevenueBRL != products[j].RevenueBRL {
			return products[i].RevenueBRL > products[j].RevenueBRL
		}
		return products[i].Sales > products[j].Sales
	})
}

// SortCreatorsByRevenue orders creators by revenue, then followers, descending.
func SortCreatorsByRevenue(creators []models.CreatorRecord) {
	sort.SliceStable(creators, func(i, j int) bool {
		if creators[i].RevenueBRL != creators[j].RevenueBRL {
			return creators[i].RevenueBRL > creators[j].RevenueBRL
		}
		return creators[i].Followers > creators[j].Followers
	})
}

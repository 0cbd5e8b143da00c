package parser

import (
	"fmt"
	"time"

	"github.com/aluiziolira/hyppado-ingest/models"
)

type videoRow struct {
	rec     models.VideoRecord
	product models.ProductRecord
}

type productRow struct {
	rec     models.ProductRecord
	newFlag *bool
	launch  time.Time
}

type creatorRow struct {
	rec models.CreatorRecord
}

func setProductFlag(r *productRow, cell string) {
	if v, ok := CoerceBool(cell); ok {
		r.newFlag = &v
	}
}

func setLaunchDate(r *productRow, cell string) {
	if t, ok := ParseDate(cell); ok {
		r.launch = t
		r.rec.LaunchDate = models.StringPtr(t.Format("2006-01-02"))
	}
}

// VideoSchema maps video export columns. Aliases cover the English and
// pt-BR Kalodata export headers.
var VideoSchema = &Schema[videoRow]{
	Kind: models.KindVideos,
	Fields: []Field[videoRow]{
		{Name: "title", Required: true, Headers: []string{"Video Title", "Title", "Video", "Video Description", "Description", "Título", "Título do Vídeo"},
			Set: func(r *videoRow, c string) { r.rec.Title = CoerceText(c) }},
		{Name: "creatorHandle", Headers: []string{"Creator Handle", "Creator", "Creator Username", "Username", "Handle", "Criador"},
			Set: func(r *videoRow, c string) { r.rec.CreatorHandle = CoerceHandle(c) }},
		{Name: "tiktokUrl", Headers: []string{"Video Link", "Video URL", "TikTok URL", "TikTok Link", "Link", "URL", "Link do Vídeo"},
			Set: func(r *videoRow, c string) { r.rec.TikTokURL = CoerceText(c) }},
		{Name: "duration", Headers: []string{"Duration", "Video Duration", "Duração"},
			Set: func(r *videoRow, c string) { r.rec.Duration = FormatDuration(c) }},
		{Name: "views", Headers: []string{"Views", "Video Views", "Visualizações"},
			Set: func(r *videoRow, c string) { r.rec.Views = CoerceCount(c) }},
		{Name: "sales", Headers: []string{"Sales", "Items Sold", "Units Sold", "Vendas"},
			Set: func(r *videoRow, c string) { r.rec.Sales = CoerceCount(c) }},
		{Name: "revenueBRL", Headers: []string{"Revenue", "Revenue(R$)", "Revenue (BRL)", "GMV", "Receita", "Faturamento"},
			Set: func(r *videoRow, c string) { r.rec.RevenueBRL = CoerceMoney(c) }},
		{Name: "roas", Headers: []string{"ROAS", "Ad ROAS"},
			Set: func(r *videoRow, c string) { r.rec.ROAS = CoerceRatio(c) }},
		{Name: "product.name", Headers: []string{"Product Name", "Product", "Produto"},
			Set: func(r *videoRow, c string) { r.product.Name = CoerceText(c) }},
		{Name: "product.category", Headers: []string{"Product Category", "Category", "Categoria"},
			Set: func(r *videoRow, c string) { r.product.Category = CoerceText(c) }},
		{Name: "product.priceBRL", Headers: []string{"Product Price", "Price", "Preço"},
			Set: func(r *videoRow, c string) { r.product.PriceBRL = CoerceMoney(c) }},
		{Name: "product.kalodataUrl", Headers: []string{"Product Kalodata Link", "Kalodata Product URL"},
			Set: func(r *videoRow, c string) { r.product.KalodataURL = CoerceText(c) }},
		{Name: "product.tiktokUrl", Headers: []string{"Product Link", "Product URL"},
			Set: func(r *videoRow, c string) { r.product.TikTokURL = CoerceText(c) }},
	},
}

// ProductSchema maps product and new-product export columns.
var ProductSchema = &Schema[productRow]{
	Kind: models.KindProducts,
	Fields: []Field[productRow]{
		{Name: "name", Required: true, Headers: []string{"Product Name", "Product", "Name", "Produto", "Nome do Produto"},
			Set: func(r *productRow, c string) { r.rec.Name = CoerceText(c) }},
		{Name: "category", Headers: []string{"Category", "Product Category", "Categoria"},
			Set: func(r *productRow, c string) { r.rec.Category = CoerceText(c) }},
		{Name: "priceBRL", Headers: []string{"Price", "Unit Price", "Avg. Unit Price", "Preço", "Preço Médio"},
			Set: func(r *productRow, c string) { r.rec.PriceBRL = CoerceMoney(c) }},
		{Name: "isNew", Headers: []string{"Is New", "New", "Novo"},
			Set: setProductFlag},
		{Name: "launchDate", Headers: []string{"Launch Date", "Launch Time", "Listed Date", "Data de Lançamento"},
			Set: setLaunchDate},
		{Name: "sales", Headers: []string{"Sales", "Items Sold", "Units Sold", "Vendas"},
			Set: func(r *productRow, c string) { r.rec.Sales = CoerceCount(c) }},
		{Name: "revenueBRL", Headers: []string{"Revenue", "Revenue(R$)", "Revenue (BRL)", "GMV", "Receita", "Faturamento"},
			Set: func(r *productRow, c string) { r.rec.RevenueBRL = CoerceMoney(c) }},
		{Name: "creatorCount", Headers: []string{"Creators", "Creator Count", "Number of Creators", "Criadores"},
			Set: func(r *productRow, c string) { r.rec.CreatorCount = CoerceCount(c) }},
		{Name: "creatorConversionRate", Headers: []string{"Creator Conversion Rate", "Conversion Rate", "Taxa de Conversão"},
			Set: func(r *productRow, c string) { r.rec.CreatorConversionRate = CoerceRate(c) }},
		{Name: "kalodataUrl", Headers: []string{"Kalodata Link", "Kalodata URL"},
			Set: func(r *productRow, c string) { r.rec.KalodataURL = CoerceText(c) }},
		{Name: "tiktokUrl", Headers: []string{"TikTok Link", "TikTok URL", "Product Link", "Link"},
			Set: func(r *productRow, c string) { r.rec.TikTokURL = CoerceText(c) }},
	},
}

// CreatorSchema maps creator export columns.
var CreatorSchema = &Schema[creatorRow]{
	Kind: models.KindCreators,
	Fields: []Field[creatorRow]{
		{Name: "handle", Required: true, Headers: []string{"Creator Handle", "Handle", "Username", "Creator", "Usuário"},
			Set: func(r *creatorRow, c string) { r.rec.Handle = CoerceHandle(c) }},
		{Name: "name", Headers: []string{"Creator Name", "Nickname", "Name", "Nome"},
			Set: func(r *creatorRow, c string) { r.rec.Name = CoerceText(c) }},
		{Name: "followers", Headers: []string{"Followers", "Seguidores"},
			Set: func(r *creatorRow, c string) { r.rec.Followers = CoerceCount(c) }},
		{Name: "views", Headers: []string{"Views", "Video Views", "Visualizações"},
			Set: func(r *creatorRow, c string) { r.rec.Views = CoerceCount(c) }},
		{Name: "videoCount", Headers: []string{"Videos", "Video Count", "Number of Videos"},
			Set: func(r *creatorRow, c string) { r.rec.VideoCount = CoerceCount(c) }},
		{Name: "revenueBRL", Headers: []string{"Revenue", "Revenue(R$)", "Revenue (BRL)", "GMV", "Receita", "Faturamento"},
			Set: func(r *creatorRow, c string) { r.rec.RevenueBRL = CoerceMoney(c) }},
		{Name: "tiktokUrl", Headers: []string{"TikTok Link", "TikTok URL", "Profile Link", "Link"},
			Set: func(r *creatorRow, c string) { r.rec.TikTokURL = CoerceText(c) }},
		{Name: "kalodataUrl", Headers: []string{"Kalodata Link", "Kalodata URL"},
			Set: func(r *creatorRow, c string) { r.rec.KalodataURL = CoerceText(c) }},
	},
}

// ValidateSchemas checks every schema table. Run once at startup.
func ValidateSchemas() error {
	if err := VideoSchema.Validate(); err != nil {
		return err
	}
	if err := ProductSchema.Validate(); err != nil {
		return err
	}
	return CreatorSchema.Validate()
}

// CheckHeader binds a sample header for kind and returns the bound field
// names, or the missing-columns error.
func CheckHeader(kind models.RecordKind, header models.RawRow) ([]string, error) {
	switch kind {
	case models.KindVideos:
		b, err := VideoSchema.Bind(header)
		if err != nil {
			return nil, err
		}
		return b.Bound(), nil
	case models.KindProducts, models.KindNewProducts:
		b, err := ProductSchema.Bind(header)
		if err != nil {
			return nil, err
		}
		return b.Bound(), nil
	case models.KindCreators:
		b, err := CreatorSchema.Bind(header)
		if err != nil {
			return nil, err
		}
		return b.Bound(), nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

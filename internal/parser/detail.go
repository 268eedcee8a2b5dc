package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fixprice-scraper/internal/models"
)

type DetailNormalizer struct {
	sel   Selectors
	stock StockPolicy
}

func NewDetailNormalizer(sel Selectors, stock StockPolicy) *DetailNormalizer {
	if stock == nil {
		stock = DefaultStockPolicy()
	}
	return &DetailNormalizer{sel: sel, stock: stock}
}

// ParseDetail turns one product page into a record. Only the title is
// required; every other selector miss falls back to an empty value. A zero
// or missing regular price rejects the page with ErrComputation.
func (n *DetailNormalizer) ParseDetail(doc *goquery.Document, pageURL string, capturedAt time.Time) (*models.ProductRecord, error) {
	title := ownText(doc.Find(n.sel.Title).First())
	if title == "" {
		return nil, &FieldError{Field: "title", Err: ErrMissingRequiredField}
	}

	product := doc.Find(n.sel.Product)
	details := product.Find(n.sel.Details)

	price, err := n.extractPrice(details)
	if err != nil {
		return nil, err
	}

	record := models.NewProductRecord(pageURL, capturedAt)
	record.Title = title
	record.Metadata = n.extractProperties(details)
	record.MarketingTags = n.extractMarketingTags(product.Find(n.sel.ImageBlock))
	record.Section = n.extractSections(doc)
	record.PriceData = price
	record.Stock = n.stock.Stock(doc)
	record.Assets = n.extractAssets(doc)
	record.RPC = record.Metadata[n.sel.ProductCodeLabel]
	record.Brand = record.Metadata[n.sel.BrandLabel]

	return record, nil
}

func (n *DetailNormalizer) extractProperties(details *goquery.Selection) map[string]string {
	properties := make(map[string]string)

	details.Find(n.sel.PropertyRow).Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Find(n.sel.PropertyTitle).First().Text())
		if label == "" {
			return
		}

		// Brand values render as links.
		valueSel := n.sel.PropertyValue
		if label == n.sel.BrandLabel {
			valueSel = n.sel.PropertyLink
		}
		properties[label] = strings.TrimSpace(s.Find(valueSel).First().Text())
	})

	return properties
}

// extractMarketingTags emits one entry per image block, empty when the block
// has no special price badge.
func (n *DetailNormalizer) extractMarketingTags(images *goquery.Selection) []string {
	tags := make([]string, 0, images.Length())
	images.Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, strings.TrimSpace(s.Find(n.sel.SpecialBadge).First().Text()))
	})
	return tags
}

// extractSections drops the last crumb, which is the product itself.
func (n *DetailNormalizer) extractSections(doc *goquery.Document) []string {
	crumbs := make([]string, 0)
	doc.Find(n.sel.Breadcrumb).Each(func(_ int, s *goquery.Selection) {
		crumbs = append(crumbs, strings.TrimSpace(s.Find(n.sel.BreadcrumbLabel).First().Text()))
	})

	if len(crumbs) == 0 {
		return crumbs
	}
	return crumbs[:len(crumbs)-1]
}

func (n *DetailNormalizer) extractPrice(details *goquery.Selection) (models.PriceData, error) {
	block := details.Find(n.sel.PriceBlock)
	regular := block.Find(n.sel.RegularPrice).First().Text()
	special := block.Find(n.sel.SpecialPrice).First()

	return BuildPriceData(regular, special.Text(), special.Length() > 0)
}

func (n *DetailNormalizer) extractAssets(doc *goquery.Document) models.AssetBundle {
	assets := models.NewAssetBundle()

	doc.Find(n.sel.Gallery).Find(n.sel.GalleryLink).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		if assets.MainImage == "" {
			assets.MainImage = href
		}
		assets.SetImages = append(assets.SetImages, href)
	})

	return assets
}

// ownText joins the element's direct text nodes, leaving out nested badges.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Each(func(_ int, c *goquery.Selection) {
		b.WriteString(c.Text())
	})
	return strings.TrimSpace(b.String())
}

package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fixprice-scraper/internal/models"
)

const (
	StockPolicyFixed = "fixed"
	StockPolicyPage  = "page"
)

// StockPolicy decides availability for a detail page. The site does not
// expose a per-store count without a cart request, so the default policy is
// a placeholder.
type StockPolicy interface {
	Stock(doc *goquery.Document) models.StockInfo
}

type FixedStockPolicy struct {
	InStock bool
	Count   int
}

func DefaultStockPolicy() FixedStockPolicy {
	return FixedStockPolicy{InStock: true, Count: 1}
}

func (p FixedStockPolicy) Stock(_ *goquery.Document) models.StockInfo {
	return models.StockInfo{InStock: p.InStock, Count: p.Count}
}

// PageStockPolicy reads the availability label printed on the page.
type PageStockPolicy struct {
	Selector    string
	InStockText string
}

func NewPageStockPolicy(sel Selectors) PageStockPolicy {
	return PageStockPolicy{
		Selector:    sel.StockLabel,
		InStockText: "В наличии",
	}
}

func (p PageStockPolicy) Stock(doc *goquery.Document) models.StockInfo {
	label := strings.TrimSpace(doc.Find(p.Selector).First().Text())
	if label == p.InStockText {
		return models.StockInfo{InStock: true, Count: 1}
	}
	return models.StockInfo{InStock: false, Count: 0}
}

// NewStockPolicy maps a configured policy name to its implementation.
func NewStockPolicy(name string, sel Selectors) StockPolicy {
	if name == StockPolicyPage {
		return NewPageStockPolicy(sel)
	}
	return DefaultStockPolicy()
}

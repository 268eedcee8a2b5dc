package models

import (
	"math"
	"time"
)

type ProductRecord struct {
	Timestamp     int64             `json:"timestamp"`
	RPC           string            `json:"RPC"`
	URL           string            `json:"url"`
	Title         string            `json:"title"`
	MarketingTags []string          `json:"marketing_tags"`
	Brand         string            `json:"brand"`
	Section       []string          `json:"section"`
	PriceData     PriceData         `json:"price_data"`
	Stock         StockInfo         `json:"stock"`
	Assets        AssetBundle       `json:"assets"`
	Metadata      map[string]string `json:"metadata"`
	Variants      int               `json:"variants"`
}

type PriceData struct {
	Current  float64 `json:"current"`
	Original float64 `json:"original"`
	SaleTag  string  `json:"sale_tag"`
}

type StockInfo struct {
	InStock bool `json:"in_stock"`
	Count   int  `json:"count"`
}

type AssetBundle struct {
	MainImage string   `json:"main_image"`
	SetImages []string `json:"set_images"`
	View360   []string `json:"view360"`
	Video     []string `json:"video"`
}

// Listing is what one catalog page contributes to the crawl.
type Listing struct {
	URL      string   `json:"url"`
	Links    []string `json:"links"`
	NextPage string   `json:"next_page,omitempty"`
}

// NewProductRecord returns a record with every collection initialised so the
// JSON output never carries null where consumers expect an array or object.
func NewProductRecord(url string, capturedAt time.Time) *ProductRecord {
	return &ProductRecord{
		Timestamp:     capturedAt.Unix(),
		URL:           url,
		MarketingTags: make([]string, 0),
		Section:       make([]string, 0),
		Assets:        NewAssetBundle(),
		Metadata:      make(map[string]string),
		Variants:      1,
	}
}

func NewAssetBundle() AssetBundle {
	return AssetBundle{
		SetImages: make([]string, 0),
		View360:   make([]string, 0),
		Video:     make([]string, 0),
	}
}

func (s *StockInfo) IsValid() bool {
	return s.Count >= 0
}

func (a *AssetBundle) IsValid() bool {
	if a.MainImage == "" {
		return true
	}
	return len(a.SetImages) > 0 && a.SetImages[0] == a.MainImage
}

func (p *PriceData) IsValid() bool {
	if math.IsInf(p.Original, 0) || math.IsNaN(p.Original) {
		return false
	}
	return p.Original >= 0 && p.Current >= 0 && p.Current <= p.Original
}

// Key identifies the record in sinks that upsert.
func (p *ProductRecord) Key() string {
	if p.RPC != "" {
		return p.RPC
	}
	return p.URL
}

func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.Title == "" {
		errors = append(errors, "Title is required")
	}

	if p.URL == "" {
		errors = append(errors, "URL is required")
	}

	if !p.PriceData.IsValid() {
		errors = append(errors, "Invalid price data")
	}

	if !p.Stock.IsValid() {
		errors = append(errors, "Invalid stock count")
	}

	if !p.Assets.IsValid() {
		errors = append(errors, "Main image must be the first set image")
	}

	return errors
}

package parser

import (
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fixprice-scraper/internal/models"
)

var (
	ErrMalformedURL         = errors.New("malformed listing URL")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrComputation          = errors.New("price computation failed")
)

// FieldError names the field a detail page failed on.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

type ListingParser interface {
	ParseListing(doc *goquery.Document, pageURL string) (*models.Listing, error)
}

type DetailParser interface {
	ParseDetail(doc *goquery.Document, pageURL string, capturedAt time.Time) (*models.ProductRecord, error)
}

type Parser interface {
	ListingParser
	DetailParser
}

// CatalogParser combines the listing extractor and the detail normalizer
// for one site layout.
type CatalogParser struct {
	*ListingExtractor
	*DetailNormalizer
}

func NewCatalogParser(sel Selectors, opts ListingOptions, stock StockPolicy) *CatalogParser {
	return &CatalogParser{
		ListingExtractor: NewListingExtractor(sel, opts),
		DetailNormalizer: NewDetailNormalizer(sel, stock),
	}
}

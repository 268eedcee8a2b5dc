package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fixprice-scraper/internal/models"
)

// DefaultDetailCap is how many product cards are followed per listing page.
const DefaultDetailCap = 7

const pageParam = "?page="

// PagePlaceholder marks where a listing URL template takes the page number.
const PagePlaceholder = "{page}"

type ListingOptions struct {
	DetailCap int
	// URLTemplate holds one PagePlaceholder for the page number. Empty means
	// the template is derived from the current listing URL.
	URLTemplate string
}

type ListingExtractor struct {
	sel  Selectors
	opts ListingOptions
}

func NewListingExtractor(sel Selectors, opts ListingOptions) *ListingExtractor {
	if opts.DetailCap <= 0 {
		opts.DetailCap = DefaultDetailCap
	}
	return &ListingExtractor{sel: sel, opts: opts}
}

// ParseListing collects up to DetailCap detail links in document order and,
// when the page carries a pagination control, the next page URL.
//
// On ErrMalformedURL the listing is still returned with its links so the
// caller can follow them; only the pagination branch is lost.
func (e *ListingExtractor) ParseListing(doc *goquery.Document, pageURL string) (*models.Listing, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}

	listing := &models.Listing{
		URL:   pageURL,
		Links: make([]string, 0, e.opts.DetailCap),
	}

	doc.Find(e.sel.ProductCard).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Find(e.sel.CardLink).First().Attr("href")
		href = strings.TrimSpace(href)
		if ok && href != "" {
			listing.Links = append(listing.Links, resolveLink(base, href))
		}
		return i+1 < e.opts.DetailCap
	})

	if doc.Find(e.sel.Pagination).Length() == 0 {
		return listing, nil
	}

	next, err := e.NextPageURL(pageURL)
	if err != nil {
		return listing, err
	}
	listing.NextPage = next

	return listing, nil
}

// NextPageURL increments the trailing ?page=N of pageURL and renders it
// through the listing template. No upper bound is applied here.
func (e *ListingExtractor) NextPageURL(pageURL string) (string, error) {
	n, err := PageNumber(pageURL)
	if err != nil {
		return "", err
	}

	if e.opts.URLTemplate != "" {
		return strings.Replace(e.opts.URLTemplate, PagePlaceholder, strconv.Itoa(n+1), 1), nil
	}

	idx := strings.Index(pageURL, pageParam)
	return PageURL(pageURL[:idx], n+1), nil
}

// PageNumber parses the 1-based page index from a listing URL.
func PageNumber(pageURL string) (int, error) {
	idx := strings.Index(pageURL, pageParam)
	if idx < 0 {
		return 0, fmt.Errorf("%w: no page parameter in %q", ErrMalformedURL, pageURL)
	}

	raw := pageURL[idx+len(pageParam):]
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid page %q in %q", ErrMalformedURL, raw, pageURL)
	}

	return n, nil
}

// PageURL builds the listing URL for a catalog section and page.
func PageURL(catalogURL string, page int) string {
	if idx := strings.Index(catalogURL, pageParam); idx >= 0 {
		catalogURL = catalogURL[:idx]
	}
	return catalogURL + pageParam + strconv.Itoa(page)
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

package parser

// Selectors describes the fix-price page layout. Every field is a goquery
// (cascadia) selector unless the name says otherwise.
type Selectors struct {
	// Listing pages
	ProductCard string
	CardLink    string
	Pagination  string

	// Detail pages
	Product         string
	Details         string
	PropertyRow     string
	PropertyTitle   string
	PropertyValue   string
	PropertyLink    string
	ImageBlock      string
	SpecialBadge    string
	Breadcrumb      string
	BreadcrumbLabel string
	PriceBlock      string
	RegularPrice    string
	SpecialPrice    string
	Gallery         string
	GalleryLink     string
	Title           string
	StockLabel      string

	// Property labels (plain text, not selectors)
	BrandLabel       string
	ProductCodeLabel string
}

func DefaultSelectors() Selectors {
	return Selectors{
		ProductCard: "div.category-content div.products div.product__wrapper div.details div.description",
		CardLink:    "a",
		Pagination:  `div[class="pagination pagination"]`,

		Product:         "div.product",
		Details:         "div.product-details",
		PropertyRow:     "div.properties p.property",
		PropertyTitle:   "span.title",
		PropertyValue:   "span.value",
		PropertyLink:    "a",
		ImageBlock:      "div.product-images",
		SpecialBadge:    `div[class="big isSpecialPrice"]`,
		Breadcrumb:      "div.header div.crumb",
		BreadcrumbLabel: "span",
		PriceBlock:      "div.visible-part",
		RegularPrice:    "div.regular-price",
		SpecialPrice:    "div.special-price",
		Gallery:         `div[class="slider gallery"]`,
		GalleryLink:     "link",
		Title:           "h1.title",
		StockLabel:      "div.product-stock",

		BrandLabel:       "Бренд",
		ProductCodeLabel: "Код товара",
	}
}

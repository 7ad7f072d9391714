package generic

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

const maxImages = 10

// GenericScraper reads any product page through Open Graph tags, JSON-LD
// and common markup patterns. It accepts every URL.
type GenericScraper struct{}

func NewGenericScraper() *GenericScraper {
	return &GenericScraper{}
}

func (s *GenericScraper) Name() string {
	return "generic"
}

func (s *GenericScraper) CanHandle(url string) bool {
	return true
}

func (s *GenericScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{}

	// 1. Name: og:title -> <title> -> first h1
	product.Name = base.MetaContent(doc, "og:title")
	if product.Name == "" {
		product.Name = base.CleanText(doc.Find("title").First().Text())
	}
	if product.Name == "" {
		product.Name = base.CleanText(doc.Find("h1").First().Text())
	}
	if product.Name == "" {
		product.Name = "Untitled Product"
	}

	// 2. Description
	product.Description = base.MetaContent(doc, "og:description", "description")
	if product.Description == "" {
		product.Description = base.CleanText(doc.Find("main p, article p").First().Text())
	}

	ld := base.JSONLD(doc)
	product.PriceText = extractPrice(doc, ld)
	product.Images = extractImages(doc, url)
	product.Category = extractCategory(doc, ld)

	product.Metadata = map[string]any{
		"sourceUrl":        url,
		"extractionMethod": s.Name(),
	}
	return product, nil
}

func extractPrice(doc *goquery.Document, ld []map[string]any) string {
	// Structured data first
	for _, obj := range ld {
		if !base.LDType(obj, "Product") {
			continue
		}
		if price, currency := offerPrice(obj["offers"]); price != "" {
			return strings.TrimSpace(price + " " + currency)
		}
	}

	selectors := []string{
		`[class*="price"]:not([class*="compare"]):not([class*="old"])`,
		`[id*="price"]`,
		".product-price",
		"#product-price",
		`[itemprop="price"]`,
		".sale-price",
	}
	for _, sel := range selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := base.CleanText(el.Text())
		if text == "" {
			text = strings.TrimSpace(el.AttrOr("content", ""))
		}
		if text != "" && base.LooksLikePrice(text) {
			return text
		}
	}

	if amount := base.MetaContent(doc, "og:price:amount", "product:price:amount"); amount != "" {
		currency := base.MetaContent(doc, "og:price:currency", "product:price:currency")
		return strings.TrimSpace(amount + " " + currency)
	}
	return ""
}

// offerPrice reads price and currency from a JSON-LD offers value, which
// may be a single Offer, an AggregateOffer or a list of offers.
func offerPrice(offers any) (string, string) {
	switch o := offers.(type) {
	case map[string]any:
		price := base.LDString(o, "price")
		if price == "" {
			price = base.LDString(o, "lowPrice")
		}
		return price, base.LDString(o, "priceCurrency")
	case []any:
		for _, item := range o {
			if price, currency := offerPrice(item); price != "" {
				return price, currency
			}
		}
	}
	return "", ""
}

func extractImages(doc *goquery.Document, pageURL string) []string {
	var images []string

	if og := base.MetaContent(doc, "og:image"); base.IsImageURL(og) {
		images = append(images, base.AbsoluteURL(pageURL, og))
	}

	doc.Find(`main img, article img, [class*="product"] img, [class*="gallery"] img, [id*="product"] img`).
		EachWithBreak(func(i int, img *goquery.Selection) bool {
			src := img.AttrOr("src", "")
			if src == "" {
				src = img.AttrOr("data-src", "")
			}
			if !base.IsImageURL(src) {
				return true
			}
			// Explicitly small images are icons or thumbnails
			if isSmall(img.AttrOr("width", "")) || isSmall(img.AttrOr("height", "")) {
				return true
			}
			lower := strings.ToLower(src)
			if strings.Contains(lower, "logo") || strings.Contains(lower, "icon") ||
				strings.Contains(strings.ToLower(img.AttrOr("alt", "")), "logo") {
				return true
			}
			images = base.AppendUnique(images, base.AbsoluteURL(pageURL, src))
			return len(images) < maxImages
		})

	return images
}

func isSmall(dim string) bool {
	if dim == "" {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(dim), "px"))
	return err == nil && n < 200
}

func extractCategory(doc *goquery.Document, ld []map[string]any) string {
	for _, obj := range ld {
		if base.LDType(obj, "BreadcrumbList") {
			if items, ok := obj["itemListElement"].([]any); ok && len(items) > 1 {
				if item, ok := items[len(items)-2].(map[string]any); ok {
					if name := breadcrumbName(item); name != "" {
						return name
					}
				}
			}
		}
		if base.LDType(obj, "Product") {
			if category := base.LDString(obj, "category"); category != "" {
				return category
			}
		}
	}

	// Second-to-last breadcrumb link; the last one is the product itself
	links := doc.Find(`[class*="breadcrumb"] a, [id*="breadcrumb"] a, nav[aria-label*="breadcrumb"] a`)
	if links.Length() > 1 {
		return base.CleanText(links.Eq(links.Length() - 2).Text())
	}
	return ""
}

func breadcrumbName(item map[string]any) string {
	if name := base.LDString(item, "name"); name != "" {
		return name
	}
	if inner, ok := item["item"].(map[string]any); ok {
		return base.LDString(inner, "name")
	}
	return ""
}

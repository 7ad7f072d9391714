package aliexpress

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

const maxImages = 10

var (
	reItemID     = regexp.MustCompile(`/item/(\d+)\.html`)
	reSiteSuffix = regexp.MustCompile(`(?i)\s*-\s*AliExpress.*$`)
	reThumbSize  = regexp.MustCompile(`_\d+x\d+\.`)
	reAliImage   = regexp.MustCompile(`(?i)(alicdn\.com|ae\d+\.|\.jpg|\.jpeg|\.png|\.webp)`)
	reRunParams  = regexp.MustCompile(`window\.runParams\s*=\s*(\{[\s\S]+?\});`)
	reStarWidth  = regexp.MustCompile(`width:\s*(\d+)%`)
)

// AliExpressScraper handles the HTML parsing for AliExpress. Product pages
// render client-side, so most data comes from meta tags and inline scripts.
type AliExpressScraper struct{}

func NewAliExpressScraper() *AliExpressScraper {
	return &AliExpressScraper{}
}

func (s *AliExpressScraper) Name() string {
	return "aliexpress"
}

func (s *AliExpressScraper) CanHandle(url string) bool {
	return strings.Contains(url, "aliexpress.com")
}

// Ready accepts documents that carry either the product meta title or a
// rendered title heading.
func (s *AliExpressScraper) Ready(doc *goquery.Document) bool {
	return base.MetaContent(doc, "og:title") != "" || doc.Find("h1").Length() > 0
}

func (s *AliExpressScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{}

	if m := reItemID.FindStringSubmatch(url); len(m) > 1 {
		product.ExternalID = m[1]
	}

	name := base.MetaContent(doc, "og:title", "title")
	if name == "" {
		name = base.CleanText(doc.Find("title").First().Text())
	}
	if name == "" {
		name = base.CleanText(doc.Find("h1").First().Text())
	}
	if name == "" {
		name = "AliExpress Product"
	}
	product.Name = strings.TrimSpace(reSiteSuffix.ReplaceAllString(name, ""))

	product.Description = base.MetaContent(doc, "og:description", "description")
	product.PriceText = extractPrice(doc)
	product.Images = extractImages(doc)
	product.Category = extractCategory(doc)

	product.Metadata = map[string]any{
		"sourceUrl":        url,
		"extractionMethod": s.Name(),
		"externalId":       product.ExternalID,
	}
	return product, nil
}

func extractPrice(doc *goquery.Document) string {
	if amount := base.MetaContent(doc, "og:price:amount"); amount != "" {
		if currency := base.MetaContent(doc, "og:price:currency"); currency != "" {
			return amount + " " + currency
		}
		return amount
	}

	// Inline state blob, present on some server-rendered variants
	var price string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		m := reRunParams.FindStringSubmatch(s.Text())
		if len(m) < 2 {
			return true
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(m[1]), &params); err != nil {
			return true
		}
		for _, key := range []string{"priceFrom", "price"} {
			switch v := params[key].(type) {
			case map[string]any:
				if low := base.LDString(v, "min"); low != "" {
					price = low + " USD"
				}
			case string, float64:
				price = base.LDString(params, key) + " USD"
			}
			if price != "" {
				return false
			}
		}
		return true
	})
	if price != "" {
		return price
	}

	for _, sel := range []string{".product-price-value", `[class*="price"]`, "#j-sku-price", ".uniform-banner-box-price"} {
		text := base.CleanText(doc.Find(sel).First().Text())
		if text != "" && base.LooksLikePrice(text) {
			return text
		}
	}
	return ""
}

func extractImages(doc *goquery.Document) []string {
	var images []string
	if og := base.MetaContent(doc, "og:image"); og != "" {
		images = append(images, og)
	}

	doc.Find(`.images-view-item img, .magnifier-image img, [class*="image"] img, [class*="gallery"] img`).
		EachWithBreak(func(i int, img *goquery.Selection) bool {
			src := img.AttrOr("src", "")
			if src == "" {
				src = img.AttrOr("data-src", "")
			}
			if src == "" {
				src = img.AttrOr("data-image", "")
			}
			if strings.HasPrefix(src, "//") {
				src = "https:" + src
			}
			if !strings.HasPrefix(src, "http") || !reAliImage.MatchString(src) {
				return true
			}
			images = base.AppendUnique(images, FullSizeImage(src))
			return len(images) < maxImages
		})
	return images
}

// FullSizeImage strips the thumbnail size segment from an alicdn URL.
func FullSizeImage(src string) string {
	return reThumbSize.ReplaceAllString(src, ".")
}

func extractCategory(doc *goquery.Document) string {
	links := doc.Find(`.breadcrumb a, .nav-breadcrumb a, [class*="breadcrumb"] a`)
	if links.Length() > 1 {
		category := base.CleanText(links.Eq(links.Length() - 2).Text())
		if category != "" && !strings.EqualFold(category, "aliexpress") {
			return category
		}
	}
	return base.MetaContent(doc, "og:product:category", "category")
}

// ExtractReviews reads the feedback list rendered on the product page.
func (s *AliExpressScraper) ExtractReviews(doc *goquery.Document, url string) ([]models.ExtractedReview, error) {
	var reviews []models.ExtractedReview

	doc.Find(`.feedback-item, [class*="list--itemBox"], [class*="review-item"]`).Each(func(i int, item *goquery.Selection) {
		text := base.CleanText(item.Find(`.buyer-feedback span, [class*="itemReview"], [class*="review-content"]`).First().Text())
		if text == "" {
			return
		}

		review := models.ExtractedReview{
			Text:          text,
			Rating:        rating(item),
			AuthorName:    base.CleanText(item.Find(`.user-name, [class*="itemInfo"] span, [class*="user-name"]`).First().Text()),
			AuthorCountry: strings.ToUpper(base.CleanText(item.Find(`.user-country b, [class*="country"]`).First().Text())),
		}
		if date := parseDate(base.CleanText(item.Find(`.r-time-new, [class*="itemDate"], [class*="review-date"]`).First().Text())); date != nil {
			review.Date = date
		}
		item.Find(`.pic-view-item img, [class*="itemThumbnails"] img`).Each(func(j int, img *goquery.Selection) {
			if src := img.AttrOr("src", ""); src != "" {
				if strings.HasPrefix(src, "//") {
					src = "https:" + src
				}
				review.Images = append(review.Images, FullSizeImage(src))
			}
		})
		reviews = append(reviews, review)
	})

	return reviews, nil
}

// rating reads stars either from a star-view width percentage or from a
// count of filled star icons.
func rating(item *goquery.Selection) int {
	if style := item.Find(`.star-view span`).AttrOr("style", ""); style != "" {
		if m := reStarWidth.FindStringSubmatch(style); len(m) > 1 {
			if pct, err := strconv.Atoi(m[1]); err == nil {
				return clampRating((pct + 10) / 20)
			}
		}
	}
	if n := item.Find(`[class*="starreviewfilled"], .star-filled`).Length(); n > 0 {
		return clampRating(n)
	}
	return 5
}

func clampRating(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

func parseDate(text string) *time.Time {
	for _, layout := range []string{"02 Jan 2006", "2 Jan 2006", "Jan 2, 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

package amazon

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

var (
	reASIN       = regexp.MustCompile(`/(dp|gp/product)/([A-Z0-9]{10})`)
	rePrice      = regexp.MustCompile(`(₹|Rs\.?|\$|€|£)\s?[\d,]+(\.\d{2})?`)
	reSizeSuffix = regexp.MustCompile(`\._.+_\.`)
	reStars      = regexp.MustCompile(`^(\d+(?:[.,]\d)?)`)
	reReviewedOn = regexp.MustCompile(`(?i)reviewed in (.+?) on (.+)$`)
)

// AmazonScraper handles the HTML parsing for Amazon
type AmazonScraper struct{}

func NewAmazonScraper() *AmazonScraper {
	return &AmazonScraper{}
}

func (s *AmazonScraper) Name() string {
	return "amazon"
}

func (s *AmazonScraper) CanHandle(url string) bool {
	return strings.Contains(url, "amazon") || strings.Contains(url, "amzn")
}

func (s *AmazonScraper) Ready(doc *goquery.Document) bool {
	return strings.TrimSpace(doc.Find("#productTitle").Text()) != ""
}

func (s *AmazonScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{}

	// 1. Title
	product.Name = base.CleanText(doc.Find("#productTitle").Text())

	// 2. Price (selling price, then list price for metadata)
	product.PriceText = sellingPrice(doc)
	mrp := base.CleanText(doc.Find(".basisPrice .a-offscreen").First().Text())
	if mrp == "" {
		mrp = base.CleanText(doc.Find("span[data-a-strike='true'] .a-offscreen").First().Text())
	}

	// 3. Description: feature bullets, then the long description
	var description []string
	doc.Find("#feature-bullets li span.a-list-item").Each(func(i int, s *goquery.Selection) {
		if text := base.CleanText(s.Text()); text != "" {
			description = append(description, text)
		}
	})
	if len(description) == 0 {
		if text := base.CleanText(doc.Find("#productDescription").Text()); text != "" {
			description = append(description, text)
		}
	}
	product.Description = strings.Join(description, "\n")

	// 4. Category: the deepest breadcrumb
	var categories []string
	doc.Find("#wayfinding-breadcrumbs_feature_div ul li").Each(func(i int, s *goquery.Selection) {
		if text := base.CleanText(s.Text()); text != "" && text != "›" {
			categories = append(categories, text)
		}
	})
	if len(categories) > 0 {
		product.Category = categories[len(categories)-1]
	}

	// 5. Images
	product.Images = images(doc)

	// 6. ASIN from the URL, else the hidden input
	if m := reASIN.FindStringSubmatch(url); len(m) > 2 {
		product.ExternalID = m[2]
	} else {
		product.ExternalID = doc.Find("input#ASIN").AttrOr("value", "")
	}

	product.Metadata = map[string]any{
		"sourceUrl":        url,
		"extractionMethod": s.Name(),
	}
	if mrp != "" {
		product.Metadata["mrp"] = mrp
	}
	if len(categories) > 0 {
		product.Metadata["breadcrumbs"] = strings.Join(categories, " > ")
	}
	return product, nil
}

func sellingPrice(doc *goquery.Document) string {
	selectors := []string{
		".priceToPay .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price.apexPriceToPay .a-offscreen",
		".a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
		".a-price .a-offscreen",
	}
	for _, sel := range selectors {
		if price := base.CleanText(doc.Find(sel).First().Text()); price != "" {
			return price
		}
	}

	// Visible price without the offscreen copy
	if whole := strings.TrimSuffix(base.CleanText(doc.Find(".a-price-whole").First().Text()), "."); whole != "" {
		symbol := base.CleanText(doc.Find(".a-price-symbol").First().Text())
		if symbol == "" {
			symbol = "₹"
		}
		return symbol + whole
	}

	// Last resort: first currency amount in the page body
	return rePrice.FindString(doc.Find("body").Text())
}

func images(doc *goquery.Document) []string {
	var found []string

	// Thumbnails carry a size segment like ._AC_US40_. before the extension
	doc.Find("#altImages ul li.item img").Each(func(i int, s *goquery.Selection) {
		if src := s.AttrOr("src", ""); src != "" {
			found = base.AppendUnique(found, reSizeSuffix.ReplaceAllString(src, "."))
		}
	})
	if len(found) > 0 {
		return found
	}

	dynamic := doc.Find("#landingImage").AttrOr("data-a-dynamic-image", "")
	if dynamic == "" {
		dynamic = doc.Find("#imgBlkFront").AttrOr("data-a-dynamic-image", "")
	}
	if dynamic != "" {
		// Keys are URLs, values are [width, height]; keep the largest
		var sizes map[string][]int
		if err := json.Unmarshal([]byte(dynamic), &sizes); err == nil {
			best, bestArea := "", 0
			for u, wh := range sizes {
				area := 0
				if len(wh) == 2 {
					area = wh[0] * wh[1]
				}
				if best == "" || area > bestArea || (area == bestArea && u < best) {
					best, bestArea = u, area
				}
			}
			return base.AppendUnique(found, best)
		}
	}
	return base.AppendUnique(found, doc.Find("#landingImage").AttrOr("src", ""))
}

// ExtractReviews reads the top reviews block of a product page.
func (s *AmazonScraper) ExtractReviews(doc *goquery.Document, url string) ([]models.ExtractedReview, error) {
	var reviews []models.ExtractedReview

	doc.Find(`[data-hook="review"]`).Each(func(i int, item *goquery.Selection) {
		text := base.CleanText(item.Find(`[data-hook="review-body"]`).Text())
		if text == "" {
			return
		}
		review := models.ExtractedReview{
			Text:       text,
			Rating:     stars(item.Find(`[data-hook="review-star-rating"], [data-hook="cmps-review-star-rating"]`).First().Text()),
			AuthorName: base.CleanText(item.Find(".a-profile-name").First().Text()),
		}
		if m := reReviewedOn.FindStringSubmatch(base.CleanText(item.Find(`[data-hook="review-date"]`).Text())); len(m) > 2 {
			review.AuthorCountry = strings.TrimPrefix(m[1], "the ")
			if t, err := time.Parse("2 January 2006", m[2]); err == nil {
				review.Date = &t
			} else if t, err := time.Parse("January 2, 2006", m[2]); err == nil {
				review.Date = &t
			}
		}
		item.Find(`[data-hook="review-image-tile"]`).Each(func(j int, img *goquery.Selection) {
			if src := img.AttrOr("src", ""); src != "" {
				review.Images = append(review.Images, reSizeSuffix.ReplaceAllString(src, "."))
			}
		})
		reviews = append(reviews, review)
	})

	return reviews, nil
}

// stars parses "4.0 out of 5 stars" into a 1..5 rating.
func stars(text string) int {
	m := reStars.FindStringSubmatch(strings.TrimSpace(text))
	if len(m) < 2 {
		return 5
	}
	f, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 5
	}
	n := int(f + 0.5)
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

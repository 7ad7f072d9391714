package myntra

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

const stateMarker = "window.__myx ="

var reStyleID = regexp.MustCompile(`/(\d+)/buy`)

type MyntraScraper struct{}

func NewMyntraScraper() *MyntraScraper {
	return &MyntraScraper{}
}

func (s *MyntraScraper) Name() string {
	return "myntra"
}

func (s *MyntraScraper) CanHandle(url string) bool {
	return strings.Contains(url, "myntra.com")
}

// Ready checks for the state script or a basic heading.
func (s *MyntraScraper) Ready(doc *goquery.Document) bool {
	return strings.Contains(doc.Text(), "window.__myx") || doc.Find("h1").Length() > 0
}

func (s *MyntraScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{
		Metadata: map[string]any{
			"sourceUrl":        url,
			"extractionMethod": s.Name(),
		},
	}
	if m := reStyleID.FindStringSubmatch(url); len(m) > 1 {
		product.ExternalID = m[1]
	}

	if pd := pdpData(doc); pd != nil {
		product.Name = getString(pd, "name")
		if product.Name == "" {
			product.Name = getString(pd, "title")
		}
		if price, ok := pd["price"]; ok && price != nil {
			product.PriceText = withRupees(fmt.Sprintf("%v", price))
		}
		if mrp, ok := pd["mrp"]; ok && mrp != nil {
			product.Metadata["mrp"] = withRupees(fmt.Sprintf("%v", mrp))
		}
		product.Description = getString(pd, "productDetails")
		if analytics, ok := pd["analytics"].(map[string]any); ok {
			product.Category = getString(analytics, "articleType")
		}
		product.Images = albumImages(pd)
		product.Metadata["extractionSource"] = "state"
	}

	// HTML fallback when the state blob is missing or unparseable
	if product.Name == "" {
		product.Name = base.CleanText(doc.Find(".pdp-title").Text())
		if product.Name == "" {
			product.Name = base.CleanText(doc.Find(".pdp-name").Text())
		}
		product.PriceText = base.CleanText(doc.Find(".pdp-price").First().Text())
		product.Description = base.CleanText(doc.Find(".pdp-product-description-content").Text())

		doc.Find(".image-grid-image").Each(func(i int, s *goquery.Selection) {
			if src := backgroundURL(s.AttrOr("style", "")); src != "" {
				product.Images = base.AppendUnique(product.Images, src)
			}
		})
		product.Metadata["extractionSource"] = "html"
	}

	return product, nil
}

// pdpData decodes the product object from the inline state script.
func pdpData(doc *goquery.Document) map[string]any {
	var jsonStr string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, stateMarker)
		if idx < 0 {
			return true
		}
		jsonStr = strings.TrimSuffix(strings.TrimSpace(text[idx+len(stateMarker):]), ";")
		return false
	})
	if jsonStr == "" {
		return nil
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &state); err != nil {
		return nil
	}
	pd, _ := state["pdpData"].(map[string]any)
	return pd
}

func albumImages(pd map[string]any) []string {
	var images []string
	media, _ := pd["media"].(map[string]any)
	albums, _ := media["albums"].([]any)
	for _, album := range albums {
		albumMap, _ := album.(map[string]any)
		list, _ := albumMap["images"].([]any)
		for _, img := range list {
			if imgMap, ok := img.(map[string]any); ok {
				images = base.AppendUnique(images, getString(imgMap, "src"))
			}
		}
	}
	return images
}

func backgroundURL(style string) string {
	start := strings.Index(style, "url(")
	if start < 0 {
		return ""
	}
	start += len("url(")
	end := strings.Index(style[start:], ")")
	if end < 0 {
		return ""
	}
	return strings.Trim(style[start:start+end], `"'`)
}

func withRupees(price string) string {
	if price == "" || strings.Contains(price, "Rs") {
		return price
	}
	return "Rs. " + price
}

func getString(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

package tatacliq

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

var reProductCode = regexp.MustCompile(`/p-(mp\d+)`)

// TataCliqScraper renders client-side, so pages nearly always need the browser.
type TataCliqScraper struct{}

func NewTataCliqScraper() *TataCliqScraper {
	return &TataCliqScraper{}
}

func (s *TataCliqScraper) Name() string {
	return "tatacliq"
}

func (s *TataCliqScraper) CanHandle(url string) bool {
	return strings.Contains(url, "tatacliq.com")
}

func (s *TataCliqScraper) Ready(doc *goquery.Document) bool {
	return doc.Find(".ProductDescriptionPage__productName").Length() > 0 ||
		doc.Find(".ProductDetailsMainCard__productName").Length() > 0
}

func (s *TataCliqScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{
		Metadata: map[string]any{
			"sourceUrl":        url,
			"extractionMethod": s.Name(),
		},
	}

	product.Name = pick(doc, "h1.ProductDescriptionPage__productName", ".ProductDetailsMainCard__productName")
	product.PriceText = pick(doc, ".ProductDescriptionPage__price", ".ProductDetailsMainCard__price")
	if mrp := pick(doc, ".ProductDescriptionPage__mrp", ".ProductDetailsMainCard__mrp"); mrp != "" {
		product.Metadata["mrp"] = mrp
	}
	if discount := pick(doc, ".ProductDescriptionPage__discount"); discount != "" {
		product.Metadata["discount"] = discount
	}
	product.Description = pick(doc, ".ProductDescriptionPage__productDescription", ".ProductDetailsMainCard__description")

	doc.Find("img.ImageGallery__image").Each(func(i int, img *goquery.Selection) {
		product.Images = base.AppendUnique(product.Images, base.AbsoluteURL(url, img.AttrOr("src", "")))
	})
	if len(product.Images) == 0 {
		product.Images = base.AppendUnique(product.Images, base.MetaContent(doc, "og:image"))
	}

	if m := reProductCode.FindStringSubmatch(strings.ToLower(url)); len(m) > 1 {
		product.ExternalID = strings.ToUpper(m[1])
	}
	return product, nil
}

func pick(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := base.CleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

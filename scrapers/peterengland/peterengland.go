package peterengland

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

var reStyleCode = regexp.MustCompile(`-(\d+)\.html`)

// PeterEnglandScraper handles the ABFRL storefronts.
type PeterEnglandScraper struct{}

func NewPeterEnglandScraper() *PeterEnglandScraper {
	return &PeterEnglandScraper{}
}

func (s *PeterEnglandScraper) Name() string {
	return "peterengland"
}

func (s *PeterEnglandScraper) CanHandle(url string) bool {
	return strings.Contains(url, "peterengland.abfrl.in") || strings.Contains(url, "peterengland")
}

func (s *PeterEnglandScraper) Ready(doc *goquery.Document) bool {
	return doc.Find("h1.pdp-title").Length() > 0 || doc.Find(".ProductDetails__productName").Length() > 0
}

func (s *PeterEnglandScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{
		Metadata: map[string]any{
			"sourceUrl":        url,
			"extractionMethod": s.Name(),
		},
	}

	product.Name = base.CleanText(doc.Find("h1.pdp-title").Text())
	if product.Name == "" {
		product.Name = base.CleanText(doc.Find(".ProductDetails__productName").Text())
	}
	if product.Name == "" {
		// page title reads "Name Online - ID | Brand"
		if name, _, ok := strings.Cut(doc.Find("title").Text(), " Online -"); ok {
			product.Name = base.CleanText(name)
		}
	}

	product.PriceText = base.CleanText(doc.Find(".pdp-price strong").Text())
	if product.PriceText == "" {
		product.PriceText = base.CleanText(doc.Find(".ProductDetails__price").Text())
	}
	if mrp := base.CleanText(doc.Find(".pdp-mrp del").Text()); mrp != "" {
		product.Metadata["mrp"] = mrp
	}
	product.Description = base.CleanText(doc.Find(".pdp-desc").Text())

	gallery := doc.Find(".Start-image-gallery img")
	if gallery.Length() == 0 {
		gallery = doc.Find(".slick-track img")
	}
	gallery.Each(func(i int, img *goquery.Selection) {
		product.Images = base.AppendUnique(product.Images, base.AbsoluteURL(url, img.AttrOr("src", "")))
	})

	if m := reStyleCode.FindStringSubmatch(url); len(m) > 1 {
		product.ExternalID = m[1]
	}
	return product, nil
}

package flipkart

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
)

var reItemID = regexp.MustCompile(`[?&]pid=([A-Z0-9]+)`)

type FlipkartScraper struct{}

func NewFlipkartScraper() *FlipkartScraper {
	return &FlipkartScraper{}
}

func (s *FlipkartScraper) Name() string {
	return "flipkart"
}

func (s *FlipkartScraper) CanHandle(url string) bool {
	return strings.Contains(url, "flipkart.com")
}

func (s *FlipkartScraper) Ready(doc *goquery.Document) bool {
	return doc.Find("h1").Length() > 0 || doc.Find(".B_NuCI").Length() > 0
}

func (s *FlipkartScraper) Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error) {
	product := &models.ExtractedProduct{}

	// 1. Title (old class, new design, generic h1)
	product.Name = firstText(doc, ".B_NuCI", "h1.yhB1nd span", "h1")

	// 2. Price
	product.PriceText = firstText(doc, "div._30jeq3._16Jk6d", "div.Nx9bqj.CxhGGd")
	mrp := firstText(doc, "div._3I9_wc._2p6lqe", "div.yRaY8j.A6ZONS")

	// 3. Description
	product.Description = firstText(doc, "div._1mXcCf", "div.yN5-Ad")
	if product.Description == "" {
		product.Description = base.MetaContent(doc, "og:description", "description")
	}

	// 4. Images: thumbnails carry a 128px size segment in the path
	doc.Find("ul._3GnUWp li._20Gt85 img").Each(func(i int, img *goquery.Selection) {
		if src := img.AttrOr("src", ""); src != "" {
			product.Images = base.AppendUnique(product.Images, strings.Replace(src, "/128/128/", "/832/832/", 1))
		}
	})
	if len(product.Images) == 0 {
		product.Images = base.AppendUnique(product.Images, doc.Find("img._396cs4").AttrOr("src", ""), base.MetaContent(doc, "og:image"))
	}

	// 5. Category: breadcrumb trail, product title is the last crumb
	crumbs := doc.Find("div._1MR4o5 a, div.r2CdBx a")
	if crumbs.Length() > 1 {
		product.Category = base.CleanText(crumbs.Eq(crumbs.Length() - 2).Text())
	}

	if m := reItemID.FindStringSubmatch(url); len(m) > 1 {
		product.ExternalID = m[1]
	}

	product.Metadata = map[string]any{
		"sourceUrl":        url,
		"extractionMethod": s.Name(),
	}
	if mrp != "" {
		product.Metadata["mrp"] = mrp
	}
	return product, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := base.CleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

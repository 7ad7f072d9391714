package scrapers

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
)

// Adapter extracts product data for one family of sites
type Adapter interface {
	// Name identifies the source, e.g. "aliexpress"
	Name() string
	// CanHandle checks if the adapter recognises the URL. It must not do I/O.
	CanHandle(url string) bool
	// Extract parses a fetched product page
	Extract(doc *goquery.Document, url string) (*models.ExtractedProduct, error)
}

// ReviewExtractor pulls customer reviews from a fetched product page
type ReviewExtractor interface {
	ExtractReviews(doc *goquery.Document, url string) ([]models.ExtractedReview, error)
}

// Registration is an adapter together with its optional capabilities.
type Registration struct {
	Adapter Adapter
	// Reviews is nil when the site has no review support.
	Reviews ReviewExtractor
	// Ready reports whether a fetched document holds the product. Nil means
	// any document that is not a block page is accepted.
	Ready func(doc *goquery.Document) bool
}

// SupportsReviews reports whether review extraction can be invoked.
func (r Registration) SupportsReviews() bool {
	return r.Reviews != nil
}

// Name returns the adapter's source name.
func (r Registration) Name() string {
	return r.Adapter.Name()
}

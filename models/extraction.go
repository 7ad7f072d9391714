package models

import "time"

// ExtractedProduct is what a site adapter pulls out of one product page.
type ExtractedProduct struct {
	Name        string
	Description string
	PriceText   string
	Images      []string
	Category    string
	ExternalID  string
	Metadata    map[string]any
}

// ExtractedReview is one review found on a product page.
type ExtractedReview struct {
	Text          string
	Rating        int
	AuthorName    string
	AuthorCountry string
	Date          *time.Time
	Images        []string
}

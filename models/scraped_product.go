package models

import "time"

// ScrapeStatus is the outcome of the latest extraction attempt for a URL.
type ScrapeStatus string

const (
	ScrapeSuccess ScrapeStatus = "success"
	ScrapePartial ScrapeStatus = "partial"
	ScrapeFailed  ScrapeStatus = "failed"
)

// ImageUploadStatus tracks the reprocessing of a scraped product's images.
type ImageUploadStatus string

const (
	ImagesPending   ImageUploadStatus = "pending"
	ImagesUploading ImageUploadStatus = "uploading"
	ImagesUploaded  ImageUploadStatus = "uploaded"
	ImagesFailed    ImageUploadStatus = "failed"
)

// ScrapedProduct is the raw extraction result for one source URL.
// SourceURL is the natural key: re-scraping updates the row in place.
type ScrapedProduct struct {
	ID         string `bson:"_id" json:"id"`
	SourceURL  string `bson:"source_url" json:"source_url"`
	SourceName string `bson:"source_name" json:"source_name"`
	ExternalID string `bson:"external_id,omitempty" json:"external_id,omitempty"`

	RawName        string         `bson:"raw_name" json:"raw_name"`
	RawDescription string         `bson:"raw_description,omitempty" json:"raw_description,omitempty"`
	RawPriceText   string         `bson:"raw_price_text,omitempty" json:"raw_price_text,omitempty"`
	RawImages      []string       `bson:"raw_images" json:"raw_images"`
	RawCategory    string         `bson:"raw_category,omitempty" json:"raw_category,omitempty"`
	RawMetadata    map[string]any `bson:"raw_metadata,omitempty" json:"raw_metadata,omitempty"`

	ScrapeStatus ScrapeStatus `bson:"scrape_status" json:"scrape_status"`
	ErrorMessage string       `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ReviewCount  int          `bson:"review_count" json:"review_count"`

	ImageUploadStatus ImageUploadStatus `bson:"image_upload_status" json:"image_upload_status"`
	UploadedImageURLs []string          `bson:"uploaded_image_urls" json:"uploaded_image_urls"`

	SentToCuration bool   `bson:"sent_to_curation" json:"sent_to_curation"`
	DraftID        string `bson:"draft_id,omitempty" json:"draft_id,omitempty"`

	LastScrapedAt time.Time `bson:"last_scraped_at" json:"last_scraped_at"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// Curatable reports whether the row may be turned into a draft.
func (p *ScrapedProduct) Curatable() bool {
	return p.ScrapeStatus == ScrapeSuccess || p.ScrapeStatus == ScrapePartial
}

// ScrapeUpdate carries the fields an extraction attempt writes. It never
// touches image or curation state.
type ScrapeUpdate struct {
	SourceURL      string
	SourceName     string
	ExternalID     string
	RawName        string
	RawDescription string
	RawPriceText   string
	RawImages      []string
	RawCategory    string
	RawMetadata    map[string]any
	Status         ScrapeStatus
	ErrorMessage   string
	ScrapedAt      time.Time
}

// KeepsRawFields reports whether the update should leave the stored raw
// payload alone. A failed attempt never erases data from an earlier run.
func (u ScrapeUpdate) KeepsRawFields() bool {
	return u.Status == ScrapeFailed
}

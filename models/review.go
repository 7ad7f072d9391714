package models

import "time"

// ReviewTranslationStatus tracks a scraped review through translation.
type ReviewTranslationStatus string

const (
	ReviewPending    ReviewTranslationStatus = "pending"
	ReviewTranslated ReviewTranslationStatus = "translated"
	ReviewFailed     ReviewTranslationStatus = "failed"
)

// ScrapedReview is a customer review captured alongside a scraped product.
type ScrapedReview struct {
	ID               string     `bson:"_id" json:"id"`
	ScrapedProductID string     `bson:"scraped_product_id" json:"scraped_product_id"`
	Text             string     `bson:"text" json:"text"`
	Rating           int        `bson:"rating" json:"rating"`
	AuthorName       string     `bson:"author_name,omitempty" json:"author_name,omitempty"`
	AuthorCountry    string     `bson:"author_country,omitempty" json:"author_country,omitempty"`
	ReviewDate       *time.Time `bson:"review_date,omitempty" json:"review_date,omitempty"`
	Images           []string   `bson:"images,omitempty" json:"images,omitempty"`
	// UploadedImages are Images re-hosted in object storage.
	UploadedImages []string `bson:"uploaded_images,omitempty" json:"uploaded_images,omitempty"`
	Language       string   `bson:"language,omitempty" json:"language,omitempty"`

	TranslationStatus ReviewTranslationStatus `bson:"translation_status" json:"translation_status"`
	TranslatedText    string                  `bson:"translated_text,omitempty" json:"translated_text,omitempty"`
	TranslationError  string                  `bson:"translation_error,omitempty" json:"translation_error,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// DisplayText is the translated text when there is one, else the source text.
func (r *ScrapedReview) DisplayText() string {
	if r.TranslatedText != "" {
		return r.TranslatedText
	}
	return r.Text
}

// Photos prefers re-hosted images over the source URLs.
func (r *ScrapedReview) Photos() []string {
	if len(r.UploadedImages) > 0 {
		return r.UploadedImages
	}
	return r.Images
}

// CatalogReview is a review attached to a published catalog product.
type CatalogReview struct {
	ID         string     `bson:"_id" json:"id"`
	ProductID  string     `bson:"product_id" json:"product_id"`
	AuthorName string     `bson:"author_name" json:"author_name"`
	Rating     int        `bson:"rating" json:"rating"`
	Content    string     `bson:"content" json:"content"`
	Photos     []string   `bson:"photos,omitempty" json:"photos,omitempty"`
	Verified   bool       `bson:"verified" json:"verified"`
	ReviewDate *time.Time `bson:"review_date,omitempty" json:"review_date,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
}

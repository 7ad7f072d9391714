package models

import (
	"strings"
	"time"
)

// DraftStatus is the editorial state of a ProductDraft.
type DraftStatus string

const (
	DraftPendingTranslation DraftStatus = "pending_translation"
	DraftTranslating        DraftStatus = "translating"
	DraftTranslated         DraftStatus = "translated"
	DraftInReview           DraftStatus = "in_review"
	DraftApproved           DraftStatus = "approved"
	DraftRejected           DraftStatus = "rejected"
	DraftPublished          DraftStatus = "published"
)

// AllDraftStatuses lists every state in workflow order.
var AllDraftStatuses = []DraftStatus{
	DraftPendingTranslation,
	DraftTranslating,
	DraftTranslated,
	DraftInReview,
	DraftApproved,
	DraftRejected,
	DraftPublished,
}

var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftPendingTranslation: {DraftTranslating},
	DraftTranslating:        {DraftTranslated, DraftPendingTranslation},
	DraftTranslated:         {DraftInReview, DraftPendingTranslation},
	DraftInReview:           {DraftApproved, DraftRejected, DraftPendingTranslation},
	DraftApproved:           {DraftPublished, DraftInReview, DraftPendingTranslation},
}

// Valid reports whether s is a known status.
func (s DraftStatus) Valid() bool {
	for _, known := range AllDraftStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s DraftStatus) Terminal() bool {
	return len(draftTransitions[s]) == 0
}

// CanTransition reports whether a draft may move from one status to another.
// Moves back to pending_translation from translated, in_review and approved
// are the curator's retranslate override.
func CanTransition(from, to DraftStatus) bool {
	for _, next := range draftTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProductDraft is a candidate product moving through translation, review
// and publication. Raw, AI and curated values are kept side by side; the
// Effective* functions decide which one wins.
type ProductDraft struct {
	ID               string `bson:"_id" json:"id"`
	ScrapedProductID string `bson:"scraped_product_id,omitempty" json:"scraped_product_id,omitempty"`

	RawName        string   `bson:"raw_name" json:"raw_name"`
	RawDescription *string  `bson:"raw_description,omitempty" json:"raw_description,omitempty"`
	RawPriceText   *string  `bson:"raw_price_text,omitempty" json:"raw_price_text,omitempty"`
	RawCategory    *string  `bson:"raw_category,omitempty" json:"raw_category,omitempty"`
	RawImages      []string `bson:"raw_images" json:"raw_images"`
	RawSourceURL   *string  `bson:"raw_source_url,omitempty" json:"raw_source_url,omitempty"`
	RawSourceName  *string  `bson:"raw_source_name,omitempty" json:"raw_source_name,omitempty"`
	UploadedImages []string `bson:"uploaded_images" json:"uploaded_images"`

	AIName             *string    `bson:"ai_name,omitempty" json:"ai_name,omitempty"`
	AIDescription      *string    `bson:"ai_description,omitempty" json:"ai_description,omitempty"`
	AIShortDescription *string    `bson:"ai_short_description,omitempty" json:"ai_short_description,omitempty"`
	AICategory         *string    `bson:"ai_category,omitempty" json:"ai_category,omitempty"`
	AISuggestedPrice   *int64     `bson:"ai_suggested_price,omitempty" json:"ai_suggested_price,omitempty"`
	AIModel            *string    `bson:"ai_model,omitempty" json:"ai_model,omitempty"`
	AIPromptVersion    *string    `bson:"ai_prompt_version,omitempty" json:"ai_prompt_version,omitempty"`
	TranslationError   *string    `bson:"translation_error,omitempty" json:"translation_error,omitempty"`
	TranslatedAt       *time.Time `bson:"translated_at,omitempty" json:"translated_at,omitempty"`

	CuratedFields `bson:",inline"`

	Status             DraftStatus `bson:"status" json:"status"`
	ReviewedBy         *string     `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time  `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`
	RejectionReason    *string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	PublishedProductID *string     `bson:"published_product_id,omitempty" json:"published_product_id,omitempty"`
	PublishedAt        *time.Time  `bson:"published_at,omitempty" json:"published_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CuratedFields are the curator's overrides. Nil leaves the AI or raw value in effect.
type CuratedFields struct {
	CuratedName             *string  `bson:"curated_name,omitempty" json:"curated_name,omitempty"`
	CuratedDescription      *string  `bson:"curated_description,omitempty" json:"curated_description,omitempty"`
	CuratedShortDescription *string  `bson:"curated_short_description,omitempty" json:"curated_short_description,omitempty"`
	CuratedCategory         *string  `bson:"curated_category,omitempty" json:"curated_category,omitempty"`
	CuratedPrice            *int64   `bson:"curated_price,omitempty" json:"curated_price,omitempty"`
	CuratedCompareAtPrice   *int64   `bson:"curated_compare_at_price,omitempty" json:"curated_compare_at_price,omitempty"`
	CuratedImages           []string `bson:"curated_images,omitempty" json:"curated_images,omitempty"`
}

// AIEnrichment is the output of a successful translation call.
type AIEnrichment struct {
	Name                string
	Description         string
	ShortDescription    string
	Category            string
	SuggestedPriceCents int64
	Model               string
	PromptVersion       string
}

// firstText returns the first value that is present and not blank.
func firstText(values ...*string) (string, bool) {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			return *v, true
		}
	}
	return "", false
}

// EffectiveName is curated, then AI, then raw name.
func EffectiveName(d *ProductDraft) string {
	if name, ok := firstText(d.CuratedName, d.AIName); ok {
		return name
	}
	return d.RawName
}

// EffectiveDescription is curated, then AI, then raw description, else "".
func EffectiveDescription(d *ProductDraft) string {
	desc, _ := firstText(d.CuratedDescription, d.AIDescription, d.RawDescription)
	return desc
}

// EffectiveShortDescription is curated, then AI, else "".
func EffectiveShortDescription(d *ProductDraft) string {
	desc, _ := firstText(d.CuratedShortDescription, d.AIShortDescription)
	return desc
}

// EffectiveCategory is curated, then AI category. The raw breadcrumb is only
// a hint for translation and never a catalog category.
func EffectiveCategory(d *ProductDraft) (string, bool) {
	return firstText(d.CuratedCategory, d.AICategory)
}

// EffectivePrice is the curated price, else the AI suggestion, in cents.
func EffectivePrice(d *ProductDraft) (int64, bool) {
	if d.CuratedPrice != nil {
		return *d.CuratedPrice, true
	}
	if d.AISuggestedPrice != nil {
		return *d.AISuggestedPrice, true
	}
	return 0, false
}

// EffectiveImages prefers curated images, then uploaded copies, then the
// raw source URLs. It returns an empty slice, never nil, when none exist.
func EffectiveImages(d *ProductDraft) []string {
	for _, set := range [][]string{d.CuratedImages, d.UploadedImages, d.RawImages} {
		if len(set) > 0 {
			out := make([]string, len(set))
			copy(out, set)
			return out
		}
	}
	return []string{}
}

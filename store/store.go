// Package store persists scraped products, reviews, drafts and catalog
// products. Every implementation enforces the same guarantees: scraped rows
// are unique by source URL, draft updates are optimistic and curation
// linkage is written at most once.
package store

import (
	"context"
	"errors"

	"github.com/raushankrgupta/product-sourcing/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("concurrent modification")
	ErrAlreadySent = errors.New("scraped product already sent to curation")
)

// ScrapedFilter narrows ListScrapedProducts. Zero values match everything.
type ScrapedFilter struct {
	Status         models.ScrapeStatus
	SentToCuration *bool
	Limit          int
}

// ScrapedProductStore persists raw extraction results.
type ScrapedProductStore interface {
	// UpsertScrape inserts or updates the row keyed by update.SourceURL and
	// returns the stored row. Image and curation fields are never modified.
	UpsertScrape(ctx context.Context, update models.ScrapeUpdate) (*models.ScrapedProduct, error)
	GetScrapedProduct(ctx context.Context, id string) (*models.ScrapedProduct, error)
	FindScrapedByURL(ctx context.Context, sourceURL string) (*models.ScrapedProduct, error)
	ListScrapedProducts(ctx context.Context, filter ScrapedFilter) ([]models.ScrapedProduct, error)
	SetImageState(ctx context.Context, id string, status models.ImageUploadStatus, uploaded []string) error
	SetReviewCount(ctx context.Context, id string, count int) error
	// MarkSentToCuration links the row to a draft. It returns ErrAlreadySent
	// when the row is already linked.
	MarkSentToCuration(ctx context.Context, id, draftID string) error
}

// ReviewStore persists scraped reviews.
type ReviewStore interface {
	ListReviews(ctx context.Context, scrapedProductID string) ([]models.ScrapedReview, error)
	// AddReviews stores new reviews. A blank translation status becomes
	// pending.
	AddReviews(ctx context.Context, reviews []models.ScrapedReview) error
	// ListPendingReviews returns reviews awaiting translation, oldest first.
	ListPendingReviews(ctx context.Context, limit int) ([]models.ScrapedReview, error)
	// SetReviewTranslation records a translation outcome. errMsg is kept
	// only for the failed status.
	SetReviewTranslation(ctx context.Context, id string, status models.ReviewTranslationStatus, translated, errMsg string) error
	SetReviewImages(ctx context.Context, id string, uploaded []string) error
}

// DraftStore persists product drafts.
type DraftStore interface {
	CreateDraft(ctx context.Context, draft *models.ProductDraft) error
	GetDraft(ctx context.Context, id string) (*models.ProductDraft, error)
	// ListDrafts returns drafts in the given statuses, oldest first. An
	// empty status list matches all drafts; limit <= 0 means no limit.
	ListDrafts(ctx context.Context, statuses []models.DraftStatus, limit int) ([]models.ProductDraft, error)
	// UpdateDraft loads the draft, applies mutate and writes it back only if
	// nobody changed it in between; otherwise it returns ErrConflict. An
	// error from mutate aborts the update and is returned as is.
	UpdateDraft(ctx context.Context, id string, mutate func(*models.ProductDraft) error) (*models.ProductDraft, error)
	DeleteDraft(ctx context.Context, id string) error
	CountDraftsByStatus(ctx context.Context) (map[models.DraftStatus]int, error)
}

// CatalogWriter is the live catalog's write model.
type CatalogWriter interface {
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	// FindProductByDraftID returns ErrNotFound when no product was created
	// from the draft.
	FindProductByDraftID(ctx context.Context, draftID string) (*models.Product, error)
	CreateReview(ctx context.Context, review models.CatalogReview) error
}

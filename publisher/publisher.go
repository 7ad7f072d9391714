// Package publisher turns approved drafts into live catalog products.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/store"
	"go.uber.org/zap"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrNotApproved     = errors.New("draft must be approved to publish")
	ErrMissingCategory = errors.New("cannot publish: no category set")
	ErrMissingPrice    = errors.New("cannot publish: no price set")
)

// deliveryKeywords mark reviews about shipping rather than the product.
var deliveryKeywords = []string{
	"livraison", "delivery", "shipping", "доставка", "entrega", "משלוח",
	"colis", "package", "посылка", "paquete", "חבילה",
	"délai", "delay", "ожидание", "espera",
	"rapide", "fast", "быстро", "lent", "slow", "долго",
}

const (
	defaultReviewAuthor = "Verified buyer"
	reviewCopyTimeout   = 2 * time.Minute
)

type Publisher struct {
	drafts  store.DraftStore
	catalog store.CatalogWriter
	reviews store.ReviewStore
	logger  *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// New builds a publisher. reviews may be nil to skip copying reviews.
func New(drafts store.DraftStore, catalog store.CatalogWriter, reviews store.ReviewStore, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		drafts:  drafts,
		catalog: catalog,
		reviews: reviews,
		logger:  logger,
		now:     time.Now,
	}
}

// PublishDraft creates the catalog product for an approved draft and marks
// the draft published. A product left behind by an interrupted earlier
// attempt is reused, so a draft never yields two products.
func (p *Publisher) PublishDraft(ctx context.Context, draftID string) (*models.Product, error) {
	d, err := p.drafts.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
		}
		return nil, err
	}
	if d.Status != models.DraftApproved {
		return nil, fmt.Errorf("%w: current status is %s", ErrNotApproved, d.Status)
	}
	category, ok := models.EffectiveCategory(d)
	if !ok {
		return nil, ErrMissingCategory
	}
	cents, ok := models.EffectivePrice(d)
	if !ok || cents <= 0 {
		return nil, ErrMissingPrice
	}

	product, err := p.catalog.FindProductByDraftID(ctx, draftID)
	switch {
	case err == nil:
		p.logger.Info("Reusing product from earlier publish attempt", zap.String("draft_id", draftID), zap.String("product_id", product.ID))
	case errors.Is(err, store.ErrNotFound):
		product, err = p.catalog.CreateProduct(ctx, productInput(d, category, cents))
		if errors.Is(err, store.ErrConflict) {
			// a concurrent publish created it first
			product, err = p.catalog.FindProductByDraftID(ctx, draftID)
		}
		if err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}
	default:
		return nil, fmt.Errorf("look up product for draft: %w", err)
	}

	_, err = p.drafts.UpdateDraft(ctx, draftID, func(d *models.ProductDraft) error {
		if !models.CanTransition(d.Status, models.DraftPublished) {
			return fmt.Errorf("%w: current status is %s", ErrNotApproved, d.Status)
		}
		now := p.now()
		d.Status = models.DraftPublished
		d.PublishedProductID = &product.ID
		d.PublishedAt = &now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark draft published: %w", err)
	}

	p.logger.Info("Draft published", zap.String("draft_id", draftID), zap.String("product_id", product.ID))
	if d.ScrapedProductID != "" && p.reviews != nil {
		p.copyReviewsAsync(ctx, d.ScrapedProductID, product.ID)
	}
	return product, nil
}

func productInput(d *models.ProductDraft, category string, cents int64) models.ProductInput {
	in := models.ProductInput{
		SourceDraftID:    d.ID,
		Name:             models.EffectiveName(d),
		Description:      models.EffectiveDescription(d),
		ShortDescription: models.EffectiveShortDescription(d),
		Category:         category,
		Price:            models.CentsToPrice(cents),
		Images:           models.EffectiveImages(d),
		InStock:          true,
	}
	if d.CuratedCompareAtPrice != nil {
		cmp := models.CentsToPrice(*d.CuratedCompareAtPrice)
		in.CompareAtPrice = &cmp
	}
	return in
}

// Wait blocks until background review copies have finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) copyReviewsAsync(ctx context.Context, scrapedID, productID string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reviewCopyTimeout)
		defer cancel()

		copied, err := p.copyReviews(ctx, scrapedID, productID)
		if err != nil {
			p.logger.Error("Failed to copy reviews", zap.String("product_id", productID), zap.Error(err))
			return
		}
		p.logger.Info("Copied reviews", zap.String("product_id", productID), zap.Int("count", copied))
	}()
}

func (p *Publisher) copyReviews(ctx context.Context, scrapedID, productID string) (int, error) {
	scraped, err := p.reviews.ListReviews(ctx, scrapedID)
	if err != nil {
		return 0, err
	}

	copied := 0
	for _, r := range scraped {
		if r.TranslationStatus != models.ReviewTranslated {
			continue
		}
		text := strings.TrimSpace(r.DisplayText())
		if AboutDelivery(text) {
			continue
		}
		review := models.CatalogReview{
			ProductID:  productID,
			AuthorName: r.AuthorName,
			Rating:     r.Rating,
			Content:    text,
			Photos:     r.Photos(),
			Verified:   true,
			ReviewDate: r.ReviewDate,
			CreatedAt:  p.now(),
		}
		if review.AuthorName == "" {
			review.AuthorName = defaultReviewAuthor
		}
		if review.Content == "" {
			review.Content = "⭐"
		}
		if err := p.catalog.CreateReview(ctx, review); err != nil {
			p.logger.Warn("Failed to save review", zap.String("product_id", productID), zap.Error(err))
			continue
		}
		copied++
	}
	return copied, nil
}

// AboutDelivery reports whether a review talks about shipping.
func AboutDelivery(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range deliveryKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Package translation runs the AI enrichment pass over drafts waiting for
// translation.
package translation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by an Enricher when the provider refuses more
// calls for now. The runner stops the batch when it sees it.
var ErrRateLimited = errors.New("rate limited")

// ErrNoEnricher is returned when no AI provider is configured.
var ErrNoEnricher = errors.New("no enricher configured")

var errNotPending = errors.New("draft is no longer pending")

// ReviewSnippet is customer feedback offered to the model as context.
type ReviewSnippet struct {
	Text   string
	Rating int
}

// RawFields is what the enricher sees of a draft.
type RawFields struct {
	Name        string
	Description string
	PriceText   string
	SourceName  string
	Category    string
	Reviews     []ReviewSnippet
}

// Enricher produces translated copy, a category and a suggested price.
type Enricher interface {
	TranslateAndEnrich(ctx context.Context, raw RawFields) (*models.AIEnrichment, error)
}

// BatchResult summarizes one BatchTranslate call.
type BatchResult struct {
	Translated   int      `json:"translated"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"error_details"`
}

const (
	maxContextReviews = 5
	minContextRating  = 4
	// persistTimeout bounds writes that must land after the batch context ends.
	persistTimeout = 10 * time.Second
)

type Runner struct {
	drafts   store.DraftStore
	reviews  store.ReviewStore
	enricher Enricher
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner builds a runner. reviews may be nil; interval is the minimum
// spacing between enricher calls.
func NewRunner(drafts store.DraftStore, reviews store.ReviewStore, enricher Enricher, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		drafts:   drafts,
		reviews:  reviews,
		enricher: enricher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// BatchTranslate processes up to maxCount pending drafts, oldest first, one
// at a time. Per-draft failures are counted and the draft goes back to
// pending; only a store failure while listing or a cancelled context is
// returned as an error.
func (r *Runner) BatchTranslate(ctx context.Context, maxCount int) (BatchResult, error) {
	result := BatchResult{ErrorDetails: []string{}}
	if r.enricher == nil {
		return result, ErrNoEnricher
	}
	if maxCount <= 0 {
		return result, nil
	}

	pending, err := r.drafts.ListDrafts(ctx, []models.DraftStatus{models.DraftPendingTranslation}, maxCount)
	if err != nil {
		return result, fmt.Errorf("list pending drafts: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.interval), 1)
	}

	for _, d := range pending {
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		err := r.translateDraft(ctx, d.ID)
		if errors.Is(err, errNotPending) {
			r.logger.Debug("Skipping draft claimed elsewhere", zap.String("draft_id", d.ID))
			continue
		}
		if err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("Draft %s (%s): %v", d.ID, d.RawName, err))
			if errors.Is(err, ErrRateLimited) {
				result.ErrorDetails = append(result.ErrorDetails, "Rate limited - stopping batch to avoid further 429 errors")
				r.logger.Warn("Rate limited, stopping batch", zap.Int("remaining", len(pending)-result.Translated-result.Errors))
				break
			}
			continue
		}
		result.Translated++
	}

	r.logger.Info("Translation batch finished",
		zap.Int("translated", result.Translated),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

func (r *Runner) translateDraft(ctx context.Context, id string) error {
	claimed, err := r.drafts.UpdateDraft(ctx, id, func(d *models.ProductDraft) error {
		if d.Status != models.DraftPendingTranslation {
			return errNotPending
		}
		d.Status = models.DraftTranslating
		return nil
	})
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		return errNotPending
	}
	if err != nil {
		return err
	}

	enrichment, err := r.enricher.TranslateAndEnrich(ctx, r.rawFields(ctx, claimed))
	if err != nil {
		r.logger.Warn("Translation failed", zap.String("draft_id", id), zap.Error(err))
		r.release(ctx, id, err)
		return err
	}

	saveCtx, cancel := persistContext(ctx)
	defer cancel()
	_, err = r.drafts.UpdateDraft(saveCtx, id, func(d *models.ProductDraft) error {
		if !models.CanTransition(d.Status, models.DraftTranslated) {
			return fmt.Errorf("draft moved to %s during translation", d.Status)
		}
		now := r.now()
		d.Status = models.DraftTranslated
		d.AIName = &enrichment.Name
		d.AIDescription = &enrichment.Description
		d.AIShortDescription = &enrichment.ShortDescription
		d.AICategory = &enrichment.Category
		d.AISuggestedPrice = &enrichment.SuggestedPriceCents
		d.AIModel = &enrichment.Model
		d.AIPromptVersion = &enrichment.PromptVersion
		d.TranslatedAt = &now
		d.TranslationError = nil
		return nil
	})
	if err != nil {
		r.release(ctx, id, err)
		return fmt.Errorf("save translation: %w", err)
	}
	r.logger.Info("Draft translated", zap.String("draft_id", id), zap.String("category", enrichment.Category))
	return nil
}

// release puts a claimed draft back to pending with the failure recorded.
// It runs even when ctx is already cancelled, otherwise the draft would stay
// claimed forever.
func (r *Runner) release(ctx context.Context, id string, cause error) {
	ctx, cancel := persistContext(ctx)
	defer cancel()

	msg := cause.Error()
	_, err := r.drafts.UpdateDraft(ctx, id, func(d *models.ProductDraft) error {
		if d.Status != models.DraftTranslating {
			return errNotPending
		}
		d.Status = models.DraftPendingTranslation
		d.TranslationError = &msg
		return nil
	})
	if err != nil && !errors.Is(err, errNotPending) {
		r.logger.Error("Failed to release draft", zap.String("draft_id", id), zap.Error(err))
	}
}

func (r *Runner) rawFields(ctx context.Context, d *models.ProductDraft) RawFields {
	raw := RawFields{
		Name:        d.RawName,
		Description: deref(d.RawDescription),
		PriceText:   deref(d.RawPriceText),
		SourceName:  deref(d.RawSourceName),
		Category:    deref(d.RawCategory),
	}
	if r.reviews == nil || d.ScrapedProductID == "" {
		return raw
	}

	reviews, err := r.reviews.ListReviews(ctx, d.ScrapedProductID)
	if err != nil {
		r.logger.Warn("Could not load reviews for context", zap.String("draft_id", d.ID), zap.Error(err))
		return raw
	}
	for _, rv := range reviews {
		if rv.Rating < minContextRating || rv.Text == "" {
			continue
		}
		raw.Reviews = append(raw.Reviews, ReviewSnippet{Text: rv.Text, Rating: rv.Rating})
		if len(raw.Reviews) == maxContextReviews {
			break
		}
	}
	return raw
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

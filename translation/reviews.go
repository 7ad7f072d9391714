package translation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// reviewFetchFactor widens the pending window so reviews with photos can be
// picked ahead of older text-only ones.
const reviewFetchFactor = 3

// ReviewTranslator turns one customer review into the target language.
// *GeminiEnricher satisfies it.
type ReviewTranslator interface {
	TranslateReview(ctx context.Context, text string) (string, error)
}

// ReviewRunner translates scraped reviews so they can be shown on the
// catalog.
type ReviewRunner struct {
	reviews    store.ReviewStore
	translator ReviewTranslator
	interval   time.Duration
	logger     *zap.Logger
}

func NewReviewRunner(reviews store.ReviewStore, translator ReviewTranslator, interval time.Duration, logger *zap.Logger) *ReviewRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewRunner{reviews: reviews, translator: translator, interval: interval, logger: logger}
}

// BatchTranslateReviews translates up to limit pending reviews. Reviews
// carrying photos go first. An empty review is marked translated without a
// model call. A failed review is marked failed and the batch moves on; a
// rate limit stops the batch and leaves the review pending.
func (r *ReviewRunner) BatchTranslateReviews(ctx context.Context, limit int) (BatchResult, error) {
	result := BatchResult{ErrorDetails: []string{}}
	if r.translator == nil {
		return result, ErrNoEnricher
	}
	if limit <= 0 {
		return result, nil
	}

	pending, err := r.reviews.ListPendingReviews(ctx, limit*reviewFetchFactor)
	if err != nil {
		return result, fmt.Errorf("list pending reviews: %w", err)
	}
	pending = photosFirst(pending, limit)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.interval), 1)
	}

	for _, rv := range pending {
		if strings.TrimSpace(rv.Text) == "" {
			if err := r.record(ctx, rv.ID, models.ReviewTranslated, "", ""); err != nil {
				result.Errors++
				result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("Review %s: %v", rv.ID, err))
				continue
			}
			result.Translated++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		translated, err := r.translator.TranslateReview(ctx, rv.Text)
		if errors.Is(err, ErrRateLimited) {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails,
				fmt.Sprintf("Review %s: %v", rv.ID, err),
				"Rate limited - stopping batch to avoid further 429 errors")
			r.logger.Warn("Rate limited, stopping review batch", zap.String("review_id", rv.ID))
			break
		}
		if err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("Review %s: %v", rv.ID, err))
			// a cancelled call says nothing about the review, it stays pending
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			r.logger.Warn("Review translation failed", zap.String("review_id", rv.ID), zap.Error(err))
			if recErr := r.record(ctx, rv.ID, models.ReviewFailed, "", err.Error()); recErr != nil {
				r.logger.Error("Failed to record review failure", zap.String("review_id", rv.ID), zap.Error(recErr))
			}
			continue
		}

		if err := r.record(ctx, rv.ID, models.ReviewTranslated, translated, ""); err != nil {
			result.Errors++
			result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("Review %s: %v", rv.ID, err))
			continue
		}
		result.Translated++
	}

	r.logger.Info("Review translation batch finished",
		zap.Int("translated", result.Translated),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

func (r *ReviewRunner) record(ctx context.Context, id string, status models.ReviewTranslationStatus, translated, errMsg string) error {
	ctx, cancel := persistContext(ctx)
	defer cancel()
	return r.reviews.SetReviewTranslation(ctx, id, status, translated, errMsg)
}

// photosFirst keeps the store order within each group.
func photosFirst(reviews []models.ScrapedReview, limit int) []models.ScrapedReview {
	slices.SortStableFunc(reviews, func(a, b models.ScrapedReview) int {
		ai, bi := len(a.Images) > 0, len(b.Images) > 0
		switch {
		case ai && !bi:
			return -1
		case !ai && bi:
			return 1
		}
		return 0
	})
	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews
}

// Package curation moves drafts through the editorial workflow and turns
// scraped products into drafts.
package curation

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/raushankrgupta/product-sourcing/images"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/store"
	"go.uber.org/zap"
)

var (
	ErrDraftNotFound     = errors.New("draft not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStatusConflict    = errors.New("draft changed concurrently")
	ErrScrapeFailed      = errors.New("failed scrapes cannot be sent to curation")
	ErrAlreadySent       = store.ErrAlreadySent
	ErrInvalidInput      = errors.New("invalid input")
)

// ImageUploader re-hosts source images. *images.Processor satisfies it.
type ImageUploader interface {
	ProcessImages(ctx context.Context, urls []string, folder string) []images.ImageOutcome
}

type Options struct {
	// ImageFolder is the key prefix for uploaded product images.
	ImageFolder string
	// ReviewImageFolder is the key prefix for customer review photos.
	ReviewImageFolder string
	// Categories restricts curated categories. Empty allows any value.
	Categories []string
}

// stateWriteTimeout bounds bookkeeping writes made after ctx may have ended.
const stateWriteTimeout = 10 * time.Second

type Service struct {
	drafts  store.DraftStore
	scraped store.ScrapedProductStore
	reviews store.ReviewStore
	images  ImageUploader
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires the curation workflow. uploader may be nil, in which
// case drafts keep only the raw image URLs. reviews may be nil to skip
// re-hosting review photos.
func NewService(drafts store.DraftStore, scraped store.ScrapedProductStore, reviews store.ReviewStore, uploader ImageUploader, opts Options, logger *zap.Logger) *Service {
	if opts.ImageFolder == "" {
		opts.ImageFolder = "products"
	}
	if opts.ReviewImageFolder == "" {
		opts.ReviewImageFolder = "reviews"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		drafts:  drafts,
		scraped: scraped,
		reviews: reviews,
		images:  uploader,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// ManualDraft is a curator-entered product with no scraped source.
type ManualDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceText   string   `json:"price_text"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	SourceURL   string   `json:"source_url"`
	SourceName  string   `json:"source_name"`
}

// CreateDraft stores a manual draft in pending_translation.
func (s *Service) CreateDraft(ctx context.Context, in ManualDraft) (*models.ProductDraft, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	d := &models.ProductDraft{
		RawName:        strings.TrimSpace(in.Name),
		RawDescription: optional(in.Description),
		RawPriceText:   optional(in.PriceText),
		RawCategory:    optional(in.Category),
		RawImages:      nonNil(in.Images),
		UploadedImages: []string{},
		RawSourceURL:   optional(in.SourceURL),
		RawSourceName:  optional(in.SourceName),
		Status:         models.DraftPendingTranslation,
	}
	if err := s.drafts.CreateDraft(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("Manual draft created", zap.String("draft_id", d.ID))
	return d, nil
}

// SendToCuration creates a draft from a scraped product. Images are
// re-hosted first. The scraped row is linked with a conditional update, so
// of two concurrent calls only one draft survives; the loser's draft is
// deleted and ErrAlreadySent is returned.
func (s *Service) SendToCuration(ctx context.Context, scrapedID string) (*models.ProductDraft, error) {
	p, err := s.scraped.GetScrapedProduct(ctx, scrapedID)
	if err != nil {
		return nil, err
	}
	if !p.Curatable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrScrapeFailed, scrapedID, p.ScrapeStatus)
	}
	if p.SentToCuration {
		return nil, fmt.Errorf("%s: %w", scrapedID, ErrAlreadySent)
	}

	uploaded := s.uploadImages(ctx, p)
	s.uploadReviewImages(ctx, p.ID)

	d := &models.ProductDraft{
		ScrapedProductID: p.ID,
		RawName:          p.RawName,
		RawDescription:   optional(p.RawDescription),
		RawPriceText:     optional(p.RawPriceText),
		RawCategory:      optional(p.RawCategory),
		RawImages:        nonNil(p.RawImages),
		RawSourceURL:     optional(p.SourceURL),
		RawSourceName:    optional(p.SourceName),
		UploadedImages:   uploaded,
		Status:           models.DraftPendingTranslation,
	}
	if err := s.drafts.CreateDraft(ctx, d); err != nil {
		return nil, err
	}

	if err := s.scraped.MarkSentToCuration(ctx, p.ID, d.ID); err != nil {
		if delErr := s.drafts.DeleteDraft(ctx, d.ID); delErr != nil {
			s.logger.Error("Failed to remove orphan draft", zap.String("draft_id", d.ID), zap.Error(delErr))
		}
		if errors.Is(err, store.ErrAlreadySent) {
			return nil, fmt.Errorf("%s: %w", scrapedID, ErrAlreadySent)
		}
		return nil, err
	}

	s.logger.Info("Sent to curation",
		zap.String("scraped_id", p.ID),
		zap.String("draft_id", d.ID),
		zap.Int("uploaded_images", len(uploaded)),
	)
	return d, nil
}

func (s *Service) uploadImages(ctx context.Context, p *models.ScrapedProduct) []string {
	if s.images == nil || len(p.RawImages) == 0 {
		return []string{}
	}
	if err := s.scraped.SetImageState(ctx, p.ID, models.ImagesUploading, nil); err != nil {
		s.logger.Warn("Could not mark images uploading", zap.String("scraped_id", p.ID), zap.Error(err))
	}

	outcomes := s.images.ProcessImages(ctx, p.RawImages, path.Join(s.opts.ImageFolder, p.ID))
	uploaded := images.StoredURLs(outcomes)

	// the row must not be left in uploading when the caller went away
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stateWriteTimeout)
	defer cancel()
	if err := s.scraped.SetImageState(writeCtx, p.ID, images.UploadStatus(outcomes), uploaded); err != nil {
		s.logger.Warn("Could not record image state", zap.String("scraped_id", p.ID), zap.Error(err))
	}
	return uploaded
}

// uploadReviewImages re-hosts customer photos under
// ReviewImageFolder/<scraped id>/<review id>. Failures are logged; the
// publisher falls back to the source URLs.
func (s *Service) uploadReviewImages(ctx context.Context, scrapedID string) {
	if s.images == nil || s.reviews == nil {
		return
	}
	reviews, err := s.reviews.ListReviews(ctx, scrapedID)
	if err != nil {
		s.logger.Warn("Could not load reviews for images", zap.String("scraped_id", scrapedID), zap.Error(err))
		return
	}

	for _, r := range reviews {
		if len(r.Images) == 0 || len(r.UploadedImages) > 0 {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		outcomes := s.images.ProcessImages(ctx, r.Images, path.Join(s.opts.ReviewImageFolder, scrapedID, r.ID))
		stored := images.StoredURLs(outcomes)
		if len(stored) == 0 {
			s.logger.Warn("No review images stored", zap.String("review_id", r.ID))
			continue
		}
		if err := s.reviews.SetReviewImages(ctx, r.ID, stored); err != nil {
			s.logger.Warn("Could not record review images", zap.String("review_id", r.ID), zap.Error(err))
			continue
		}
		s.logger.Debug("Review images uploaded", zap.String("review_id", r.ID), zap.Int("count", len(stored)))
	}
}

// OpenForReview moves a translated draft into review.
func (s *Service) OpenForReview(ctx context.Context, id string) (*models.ProductDraft, error) {
	return s.transition(ctx, id, models.DraftInReview, nil)
}

func (s *Service) Approve(ctx context.Context, id, reviewer string) (*models.ProductDraft, error) {
	return s.transition(ctx, id, models.DraftApproved, func(d *models.ProductDraft) {
		s.stampReview(d, reviewer)
		d.RejectionReason = nil
	})
}

func (s *Service) Reject(ctx context.Context, id, reviewer, reason string) (*models.ProductDraft, error) {
	return s.transition(ctx, id, models.DraftRejected, func(d *models.ProductDraft) {
		s.stampReview(d, reviewer)
		d.RejectionReason = optional(reason)
	})
}

// ReturnToReview sends an approved draft back to the curator.
func (s *Service) ReturnToReview(ctx context.Context, id string) (*models.ProductDraft, error) {
	return s.transition(ctx, id, models.DraftInReview, nil)
}

// Retranslate queues the draft for a fresh AI pass. Curated overrides are
// kept; every AI field is cleared. A draft the runner is working on cannot
// be retranslated.
func (s *Service) Retranslate(ctx context.Context, id string) (*models.ProductDraft, error) {
	d, err := s.drafts.UpdateDraft(ctx, id, func(d *models.ProductDraft) error {
		if d.Status == models.DraftTranslating ||
			(d.Status != models.DraftPendingTranslation && !models.CanTransition(d.Status, models.DraftPendingTranslation)) {
			return fmt.Errorf("%w: cannot retranslate a %s draft", ErrInvalidTransition, d.Status)
		}
		d.Status = models.DraftPendingTranslation
		d.AIName = nil
		d.AIDescription = nil
		d.AIShortDescription = nil
		d.AICategory = nil
		d.AISuggestedPrice = nil
		d.AIModel = nil
		d.AIPromptVersion = nil
		d.TranslatedAt = nil
		d.TranslationError = nil
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	s.logger.Info("Draft queued for retranslation", zap.String("draft_id", id))
	return d, nil
}

// SaveCuratedFields replaces the curator overrides. A nil field removes the
// override. Terminal drafts cannot be edited.
func (s *Service) SaveCuratedFields(ctx context.Context, id string, fields models.CuratedFields) (*models.ProductDraft, error) {
	if err := s.validateCurated(fields); err != nil {
		return nil, err
	}
	d, err := s.drafts.UpdateDraft(ctx, id, func(d *models.ProductDraft) error {
		if d.Status.Terminal() {
			return fmt.Errorf("%w: draft is %s", ErrInvalidTransition, d.Status)
		}
		d.CuratedFields = fields
		return nil
	})
	return d, s.wrap(err)
}

func (s *Service) validateCurated(f models.CuratedFields) error {
	if f.CuratedPrice != nil && *f.CuratedPrice < 0 {
		return fmt.Errorf("%w: curated price must not be negative", ErrInvalidInput)
	}
	if f.CuratedCompareAtPrice != nil && *f.CuratedCompareAtPrice < 0 {
		return fmt.Errorf("%w: compare-at price must not be negative", ErrInvalidInput)
	}
	if f.CuratedCategory != nil && len(s.opts.Categories) > 0 {
		cat := strings.TrimSpace(*f.CuratedCategory)
		if cat != "" && !slices.Contains(s.opts.Categories, cat) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, cat)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.ProductDraft, error) {
	d, err := s.drafts.GetDraft(ctx, id)
	return d, s.wrap(err)
}

// List returns drafts in the given statuses, oldest first.
func (s *Service) List(ctx context.Context, statuses []models.DraftStatus, limit int) ([]models.ProductDraft, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, st)
		}
	}
	return s.drafts.ListDrafts(ctx, statuses, limit)
}

// Stats counts drafts per status.
type Stats struct {
	ByStatus map[models.DraftStatus]int `json:"by_status"`
	Total    int                        `json:"total"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.drafts.CountDraftsByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByStatus: counts}
	for _, n := range counts {
		st.Total += n
	}
	return st, nil
}

func (s *Service) transition(ctx context.Context, id string, to models.DraftStatus, apply func(*models.ProductDraft)) (*models.ProductDraft, error) {
	var from models.DraftStatus
	d, err := s.drafts.UpdateDraft(ctx, id, func(d *models.ProductDraft) error {
		from = d.Status
		if !models.CanTransition(d.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
		}
		d.Status = to
		if apply != nil {
			apply(d)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	s.logger.Info("Draft status changed", zap.String("draft_id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	return d, nil
}

func (s *Service) stampReview(d *models.ProductDraft, reviewer string) {
	now := s.now()
	d.ReviewedAt = &now
	d.ReviewedBy = optional(reviewer)
}

// wrap maps store errors onto this package's sentinels while keeping the
// original in the chain.
func (s *Service) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrDraftNotFound, err)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrStatusConflict, err)
	default:
		return err
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

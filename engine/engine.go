// Package engine runs extraction over a batch of URLs and persists one
// scraped product row per URL.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/scrapers"
	"github.com/raushankrgupta/product-sourcing/store"
	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrNoProductName marks a page that parsed but yielded no product name.
var ErrNoProductName = errors.New("no product name found")

// PageFetcher loads a product page. *base.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, ready func(*goquery.Document) bool) (*goquery.Document, error)
}

// URLError is a per-URL failure.
type URLError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BatchResult holds the stored rows in input order and every per-URL error.
// A URL whose extraction failed appears in both.
type BatchResult struct {
	Results []models.ScrapedProduct `json:"results"`
	Errors  []URLError              `json:"errors"`
}

type Options struct {
	Concurrency int
	// Interval is the minimum spacing between page fetches.
	Interval   time.Duration
	MaxReviews int
	// ResolveShortLinks expands known shortener URLs before fetching.
	ResolveShortLinks bool
}

type Engine struct {
	registry *scrapers.Registry
	fetcher  PageFetcher
	products store.ScrapedProductStore
	reviews  store.ReviewStore
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
	resolve  func(ctx context.Context, url string) (string, error)
}

func New(registry *scrapers.Registry, fetcher PageFetcher, products store.ScrapedProductStore, reviews store.ReviewStore, opts Options, logger *zap.Logger) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 2
	}
	if opts.MaxReviews <= 0 {
		opts.MaxReviews = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		fetcher:  fetcher,
		products: products,
		reviews:  reviews,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		resolve:  utils.ResolveShortenedURL,
	}
}

// urlOutcome may carry both a row and an error: a failed extraction is
// still recorded.
type urlOutcome struct {
	row *models.ScrapedProduct
	err *URLError
}

// ScrapeURLs extracts every distinct URL once. Each row is persisted as soon
// as its URL completes, so an interrupted batch keeps finished work.
func (e *Engine) ScrapeURLs(ctx context.Context, urls []string) BatchResult {
	unique := dedupe(urls)
	outcomes := make([]urlOutcome, len(unique))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if e.opts.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(e.opts.Interval), 1)
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, url := range unique {
		g.Go(func() error {
			outcomes[i] = e.scrapeOne(ctx, url, limiter)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Results: []models.ScrapedProduct{}, Errors: []URLError{}}
	for _, o := range outcomes {
		if o.row != nil {
			result.Results = append(result.Results, *o.row)
		}
		if o.err != nil {
			result.Errors = append(result.Errors, *o.err)
		}
	}
	e.logger.Info("Scrape batch finished",
		zap.Int("urls", len(unique)),
		zap.Int("stored", len(result.Results)),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (e *Engine) scrapeOne(ctx context.Context, url string, limiter *rate.Limiter) urlOutcome {
	log := e.logger.With(zap.String("url", url))

	if existing, err := e.products.FindScrapedByURL(ctx, url); err == nil {
		log.Debug("Re-extracting known URL", zap.String("id", existing.ID), zap.String("previous_status", string(existing.ScrapeStatus)))
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn("Lookup of existing row failed", zap.Error(err))
	}

	fetchURL := url
	if e.opts.ResolveShortLinks && utils.IsShortLink(url) {
		if resolved, err := e.resolve(ctx, url); err == nil && resolved != "" {
			log.Debug("Resolved short link", zap.String("resolved", resolved))
			fetchURL = resolved
		} else if err != nil {
			log.Warn("Could not resolve short link", zap.Error(err))
		}
	}

	update := models.ScrapeUpdate{SourceURL: url}
	reg, ext, extractErr := e.extract(ctx, fetchURL, limiter)
	if reg.Adapter != nil {
		update.SourceName = reg.Name()
	}
	update.ScrapedAt = e.now()

	switch {
	case extractErr != nil:
		update.Status = models.ScrapeFailed
		update.ErrorMessage = extractErr.Error()
	default:
		update.ExternalID = ext.ExternalID
		update.RawName = ext.Name
		update.RawDescription = ext.Description
		update.RawPriceText = ext.PriceText
		update.RawImages = ext.Images
		update.RawCategory = ext.Category
		update.RawMetadata = ext.Metadata
		update.Status = Classify(ext.ExtractedProduct)
	}

	row, err := e.products.UpsertScrape(ctx, update)
	if err != nil {
		log.Error("Failed to persist scrape", zap.Error(err))
		return urlOutcome{err: &URLError{URL: url, Error: err.Error()}}
	}

	out := urlOutcome{row: row}
	if extractErr != nil {
		log.Warn("Extraction failed", zap.Error(extractErr))
		out.err = &URLError{URL: url, Error: extractErr.Error()}
		return out
	}

	log.Info("Scraped product", zap.String("source", update.SourceName), zap.String("status", string(row.ScrapeStatus)))
	if reg.SupportsReviews() && e.reviews != nil {
		if count, err := e.storeReviews(ctx, row, reg, ext.doc, fetchURL); err != nil {
			log.Warn("Review extraction failed", zap.Error(err))
		} else {
			row.ReviewCount = count
		}
	}
	return out
}

type extraction struct {
	*models.ExtractedProduct
	doc *goquery.Document
}

func (e *Engine) extract(ctx context.Context, url string, limiter *rate.Limiter) (scrapers.Registration, extraction, error) {
	reg, err := e.registry.Resolve(url)
	if err != nil {
		return reg, extraction{}, err
	}

	if err := limiter.Wait(ctx); err != nil {
		return reg, extraction{}, err
	}
	doc, err := e.fetcher.Fetch(ctx, url, reg.Ready)
	if err != nil {
		return reg, extraction{}, err
	}

	product, err := reg.Adapter.Extract(doc, url)
	if err != nil {
		return reg, extraction{}, fmt.Errorf("%s extraction: %w", reg.Name(), err)
	}
	if product == nil || strings.TrimSpace(product.Name) == "" {
		return reg, extraction{}, ErrNoProductName
	}
	return reg, extraction{ExtractedProduct: product, doc: doc}, nil
}

// Classify grades a successful extraction: partial when price or images are
// missing, success otherwise.
func Classify(p *models.ExtractedProduct) models.ScrapeStatus {
	if strings.TrimSpace(p.PriceText) == "" || len(p.Images) == 0 {
		return models.ScrapePartial
	}
	return models.ScrapeSuccess
}

func (e *Engine) storeReviews(ctx context.Context, row *models.ScrapedProduct, reg scrapers.Registration, doc *goquery.Document, url string) (int, error) {
	extracted, err := reg.Reviews.ExtractReviews(doc, url)
	if err != nil {
		return 0, err
	}
	existing, err := e.reviews.ListReviews(ctx, row.ID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[normalizeReview(r.Text)] = true
	}

	room := e.opts.MaxReviews - len(existing)
	var fresh []models.ScrapedReview
	for _, r := range extracted {
		if room <= 0 {
			break
		}
		key := normalizeReview(r.Text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, models.ScrapedReview{
			ScrapedProductID: row.ID,
			Text:             strings.TrimSpace(r.Text),
			Rating:           r.Rating,
			AuthorName:       r.AuthorName,
			AuthorCountry:    r.AuthorCountry,
			ReviewDate:       r.Date,
			Images:           r.Images,
			CreatedAt:        e.now(),
		})
		room--
	}

	if err := e.reviews.AddReviews(ctx, fresh); err != nil {
		return 0, err
	}
	total := len(existing) + len(fresh)
	if err := e.products.SetReviewCount(ctx, row.ID, total); err != nil {
		return 0, err
	}
	e.logger.Debug("Stored reviews", zap.String("id", row.ID), zap.Int("new", len(fresh)), zap.Int("total", total))
	return total, nil
}

func normalizeReview(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Package pipeline wires the stages into the entry points used by the CLI,
// the HTTP API and the scheduler.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/raushankrgupta/product-sourcing/curation"
	"github.com/raushankrgupta/product-sourcing/engine"
	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/publisher"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
	"github.com/raushankrgupta/product-sourcing/translation"
	"go.uber.org/zap"
)

// ScrapeSummary is the outcome of one RunScrape call.
type ScrapeSummary struct {
	Scraped        int      `json:"scraped"`
	SentToCuration int      `json:"sent_to_curation"`
	Errors         int      `json:"errors"`
	ErrorDetails   []string `json:"error_details"`
}

// Scraper runs a batch of URLs. *engine.Engine satisfies it.
type Scraper interface {
	ScrapeURLs(ctx context.Context, urls []string) engine.BatchResult
}

type Pipeline struct {
	rendererCfg base.RendererConfig
	// newScraper builds a scraper around the invocation's renderer
	newScraper func(base.Renderer) Scraper
	curation   *curation.Service
	translator *translation.Runner
	reviews    *translation.ReviewRunner
	publisher  *publisher.Publisher
	logger     *zap.Logger
}

func New(
	rendererCfg base.RendererConfig,
	newScraper func(base.Renderer) Scraper,
	curationSvc *curation.Service,
	translator *translation.Runner,
	reviewTranslator *translation.ReviewRunner,
	pub *publisher.Publisher,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		rendererCfg: rendererCfg,
		newScraper:  newScraper,
		curation:    curationSvc,
		translator:  translator,
		reviews:     reviewTranslator,
		publisher:   pub,
		logger:      logger,
	}
}

// RunScrape extracts urls with one browser held for the whole call, then
// sends every curatable row that has no draft yet to curation. Per-URL and
// per-row failures are counted in the summary; only a failure to start the
// browser is returned.
func (p *Pipeline) RunScrape(ctx context.Context, urls []string) (ScrapeSummary, error) {
	summary := ScrapeSummary{ErrorDetails: []string{}}

	err := base.WithRenderer(ctx, p.rendererCfg, p.logger, func(r base.Renderer) error {
		batch := p.newScraper(r).ScrapeURLs(ctx, urls)

		for _, e := range batch.Errors {
			summary.Errors++
			summary.ErrorDetails = append(summary.ErrorDetails, fmt.Sprintf("%s: %s", e.URL, e.Error))
		}

		for _, row := range batch.Results {
			if row.ScrapeStatus != models.ScrapeFailed {
				summary.Scraped++
			}
			if !row.Curatable() || row.SentToCuration {
				continue
			}
			if _, err := p.curation.SendToCuration(ctx, row.ID); err != nil {
				if errors.Is(err, curation.ErrAlreadySent) {
					continue
				}
				summary.Errors++
				summary.ErrorDetails = append(summary.ErrorDetails, fmt.Sprintf("send %s to curation: %v", row.SourceURL, err))
				continue
			}
			summary.SentToCuration++
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("scrape run: %w", err)
	}

	p.logger.Info("Scrape run finished",
		zap.Int("scraped", summary.Scraped),
		zap.Int("sent_to_curation", summary.SentToCuration),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// RunTranslate translates up to batchSize pending drafts.
func (p *Pipeline) RunTranslate(ctx context.Context, batchSize int) (translation.BatchResult, error) {
	return p.translator.BatchTranslate(ctx, batchSize)
}

// RunTranslateReviews translates up to limit pending customer reviews.
func (p *Pipeline) RunTranslateReviews(ctx context.Context, limit int) (translation.BatchResult, error) {
	if p.reviews == nil {
		return translation.BatchResult{ErrorDetails: []string{}}, translation.ErrNoEnricher
	}
	return p.reviews.BatchTranslateReviews(ctx, limit)
}

// RunPublish publishes one approved draft.
func (p *Pipeline) RunPublish(ctx context.Context, draftID string) (*models.Product, error) {
	return p.publisher.PublishDraft(ctx, draftID)
}

// Curation exposes the curation service to the API layer.
func (p *Pipeline) Curation() *curation.Service {
	return p.curation
}

// Wait drains background work started by earlier runs.
func (p *Pipeline) Wait() {
	p.publisher.Wait()
}

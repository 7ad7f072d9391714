package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/raushankrgupta/product-sourcing/config"
	"github.com/raushankrgupta/product-sourcing/curation"
	"github.com/raushankrgupta/product-sourcing/engine"
	"github.com/raushankrgupta/product-sourcing/images"
	"github.com/raushankrgupta/product-sourcing/publisher"
	"github.com/raushankrgupta/product-sourcing/scrapers"
	"github.com/raushankrgupta/product-sourcing/scrapers/base"
	"github.com/raushankrgupta/product-sourcing/store"
	"github.com/raushankrgupta/product-sourcing/translation"
	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
)

// App is a fully wired pipeline plus the resources it holds open.
type App struct {
	Config   *config.Config
	Pipeline *Pipeline
	closers  []func(context.Context) error
	logger   *zap.Logger
}

type stores struct {
	scraped store.ScrapedProductStore
	reviews store.ReviewStore
	drafts  store.DraftStore
	catalog store.CatalogWriter
}

// Build connects every backend named by cfg and assembles the pipeline.
// Object storage and the AI provider are optional: without a bucket drafts
// keep raw image URLs, and without an API key translation reports
// ErrNoEnricher.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, logger: logger}

	st, err := app.openStores(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	var uploader curation.ImageUploader
	if cfg.AWSBucketName != "" {
		s3Store, err := utils.NewS3Storage(ctx, utils.S3Settings{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AWSBucketName,
			Endpoint:        cfg.AWSEndpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			UsePathStyle:    cfg.AWSUsePathStyle,
		}, utils.WithS3Logger(logger.Named("s3")), utils.WithPublicBaseURL(cfg.PublicImageBaseURL))
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		uploader = images.NewProcessor(s3Store, utils.NewDownloadClient(cfg.HTTPTimeout), images.Options{
			Concurrency:  cfg.ImageConcurrency,
			MaxDimension: cfg.ImageMaxDimension,
			MaxBytes:     cfg.ImageMaxBytes,
		}, logger.Named("images"))
	} else {
		logger.Warn("AWS_BUCKET_NAME not set, images will not be re-hosted")
	}

	var (
		enricher         translation.Enricher
		reviewTranslator translation.ReviewTranslator
	)
	if cfg.GeminiAPIKey != "" {
		gemini, err := utils.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger.Named("gemini"))
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return gemini.Close() })
		ge := translation.NewGeminiEnricher(gemini, cfg.TranslationLanguage, cfg.Categories)
		enricher, reviewTranslator = ge, ge
	} else {
		logger.Warn("GEMINI_API_KEY not set, translation is disabled")
	}

	registry := scrapers.DefaultRegistry()
	httpClient := base.NewHTTPClient(cfg.HTTPTimeout)
	engineOpts := engine.Options{
		Concurrency:       cfg.ScrapeConcurrency,
		Interval:          cfg.ScrapeInterval,
		MaxReviews:        cfg.MaxReviewsPerProduct,
		ResolveShortLinks: true,
	}
	newScraper := func(r base.Renderer) Scraper {
		fetcher := base.NewFetcher(httpClient, r, logger.Named("fetch"))
		return engine.New(registry, fetcher, st.scraped, st.reviews, engineOpts, logger.Named("engine"))
	}

	app.Pipeline = New(
		RendererConfigFrom(cfg),
		newScraper,
		curation.NewService(st.drafts, st.scraped, st.reviews, uploader, curation.Options{
			ImageFolder:       cfg.ImageFolder,
			ReviewImageFolder: cfg.ReviewImageFolder,
			Categories:        cfg.Categories,
		}, logger.Named("curation")),
		translation.NewRunner(st.drafts, st.reviews, enricher, cfg.TranslateInterval, logger.Named("translation")),
		translation.NewReviewRunner(st.reviews, reviewTranslator, cfg.ReviewTranslateInterval, logger.Named("reviews")),
		publisher.New(st.drafts, st.catalog, st.reviews, logger.Named("publisher")),
		logger,
	)
	return app, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	if strings.EqualFold(a.Config.StoreBackend, "memory") {
		a.logger.Warn("Using in-memory store, nothing is persisted")
		m := store.NewMemoryStore()
		return stores{scraped: m, reviews: m, drafts: m, catalog: m}, nil
	}

	client, err := utils.ConnectMongo(ctx, a.Config.MongoURI, a.logger)
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, client.Disconnect)

	db := client.Database(a.Config.MongoDatabase)
	ms := store.NewMongoStore(db, a.logger.Named("store"))
	if err := ms.EnsureIndexes(ctx); err != nil {
		return stores{}, fmt.Errorf("ensure indexes: %w", err)
	}
	catalog := store.NewMongoCatalog(db, a.logger.Named("catalog"))
	if err := catalog.EnsureIndexes(ctx); err != nil {
		return stores{}, fmt.Errorf("ensure catalog indexes: %w", err)
	}
	return stores{scraped: ms, reviews: ms, drafts: ms, catalog: catalog}, nil
}

// Close waits for background work and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Pipeline != nil {
		a.Pipeline.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}

// RendererConfigFrom maps the browser settings of cfg.
func RendererConfigFrom(cfg *config.Config) base.RendererConfig {
	return base.RendererConfig{
		Backend:          cfg.BrowserBackend,
		RemoteURL:        cfg.BrowserRemoteURL,
		ChromeDriverPath: cfg.ChromeDriverPath,
		SeleniumBasePort: cfg.SeleniumBasePort,
		PageTimeout:      cfg.PageTimeout,
		SettleDelay:      cfg.PageSettleDelay,
	}
}

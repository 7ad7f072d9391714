package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raushankrgupta/product-sourcing/api"
	"github.com/raushankrgupta/product-sourcing/config"
	"github.com/raushankrgupta/product-sourcing/pipeline"
	"github.com/raushankrgupta/product-sourcing/scheduler"
	"github.com/raushankrgupta/product-sourcing/utils"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	jobs := scheduler.New(logger,
		scheduler.Job{
			Name:  "scrape",
			Every: cfg.ScheduleScrapeEvery,
			Run: func(ctx context.Context) error {
				urls := cfg.TrimmedScrapeURLs()
				if len(urls) == 0 {
					return nil
				}
				summary, err := app.Pipeline.RunScrape(ctx, urls)
				if err == nil {
					logger.Info("Scheduled scrape", zap.Int("scraped", summary.Scraped),
						zap.Int("sent", summary.SentToCuration), zap.Int("errors", summary.Errors))
				}
				return err
			},
		},
		scheduler.Job{
			Name:  "translate",
			Every: cfg.ScheduleTranslateEvery,
			Run: func(ctx context.Context) error {
				result, err := app.Pipeline.RunTranslate(ctx, cfg.TranslateBatchSize)
				if err == nil {
					logger.Info("Scheduled translation", zap.Int("translated", result.Translated), zap.Int("errors", result.Errors))
				}
				return err
			},
		},
		scheduler.Job{
			Name:  "translate-reviews",
			Every: cfg.ScheduleReviewTranslateEvery,
			Run: func(ctx context.Context) error {
				result, err := app.Pipeline.RunTranslateReviews(ctx, cfg.ReviewTranslateBatchSize)
				if err == nil {
					logger.Info("Scheduled review translation", zap.Int("translated", result.Translated), zap.Int("errors", result.Errors))
				}
				return err
			},
		},
	)
	jobs.Start(ctx)

	handler := api.NewRouter(
		api.NewHandler(app.Pipeline, cfg.TrimmedScrapeURLs(), cfg.TranslateBatchSize, cfg.ReviewTranslateBatchSize, logger),
		api.AuthConfig{CronSecret: cfg.CronSecret, JWTSecret: cfg.JWTSecret},
		logger,
	)
	if err := api.Serve(ctx, ":"+cfg.Port, handler, 30*time.Second, logger); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("Scheduler did not stop cleanly", zap.Error(err))
	}
	app.Close(shutdownCtx)
}

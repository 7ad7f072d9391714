package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	translateLimit       int
	translateReviewLimit int
)

var scrapeCmd = &cobra.Command{
	Use:     "scrape [urls...]",
	Short:   "Scrape product pages and send the results to curation",
	Long:    `Scrapes the given URLs, or SCRAPE_URLS when none are given.`,
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if len(urls) == 0 {
			urls = cfg.TrimmedScrapeURLs()
		}
		if len(urls) == 0 {
			return errors.New("no URLs given and SCRAPE_URLS is empty")
		}
		summary, err := app.Pipeline.RunScrape(cmd.Context(), urls)
		if err != nil {
			return err
		}
		return printJSON(cmd, summary)
	},
}

var translateCmd = &cobra.Command{
	Use:     "translate",
	Short:   "Translate the oldest pending drafts",
	Args:    cobra.NoArgs,
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := translateLimit
		if limit <= 0 {
			limit = cfg.TranslateBatchSize
		}
		result, err := app.Pipeline.RunTranslate(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var translateReviewsCmd = &cobra.Command{
	Use:     "translate-reviews",
	Short:   "Translate pending customer reviews, those with photos first",
	Args:    cobra.NoArgs,
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := translateReviewLimit
		if limit <= 0 {
			limit = cfg.ReviewTranslateBatchSize
		}
		result, err := app.Pipeline.RunTranslateReviews(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var publishCmd = &cobra.Command{
	Use:     "publish [draft-id]",
	Short:   "Publish an approved draft to the catalog",
	Args:    cobra.ExactArgs(1),
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		product, err := app.Pipeline.RunPublish(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, product)
	},
}

func init() {
	translateCmd.Flags().IntVarP(&translateLimit, "limit", "n", 0, "maximum drafts to translate (default TRANSLATE_BATCH_SIZE)")
	translateReviewsCmd.Flags().IntVarP(&translateReviewLimit, "limit", "n", 0, "maximum reviews to translate (default REVIEW_TRANSLATE_BATCH_SIZE)")
	rootCmd.AddCommand(scrapeCmd, translateCmd, translateReviewsCmd, publishCmd)
}

package main

import (
	"errors"
	"strings"
	"time"

	"github.com/raushankrgupta/product-sourcing/models"
	"github.com/raushankrgupta/product-sourcing/utils"
	"github.com/spf13/cobra"
)

var errJWTSecretMissing = errors.New("JWT_SECRET is not set")

var (
	draftStatuses []string
	draftLimit    int
	tokenTTL      time.Duration
)

var sendCmd = &cobra.Command{
	Use:     "send [scraped-product-id]",
	Short:   "Create a draft from a scraped product",
	Args:    cobra.ExactArgs(1),
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := app.Pipeline.Curation().SendToCuration(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, d)
	},
}

var draftsCmd = &cobra.Command{
	Use:     "drafts",
	Short:   "List drafts, oldest first",
	Args:    cobra.NoArgs,
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []models.DraftStatus
		for _, s := range draftStatuses {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, models.DraftStatus(s))
			}
		}
		drafts, err := app.Pipeline.Curation().List(cmd.Context(), statuses, draftLimit)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			cmd.Println("No drafts found.")
			return nil
		}
		for i := range drafts {
			d := &drafts[i]
			cmd.Printf("%s  %-20s  %s\n", d.ID, d.Status, models.EffectiveName(d))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Count drafts per status",
	Args:    cobra.NoArgs,
	PreRunE: loadApp,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := app.Pipeline.Curation().Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

var tokenCmd = &cobra.Command{
	Use:     "token [reviewer]",
	Short:   "Issue an API token for a reviewer",
	Args:    cobra.ExactArgs(1),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errJWTSecretMissing
		}
		token, err := utils.GenerateToken(cfg.JWTSecret, args[0], tokenTTL)
		if err != nil {
			return err
		}
		cmd.Println(token)
		return nil
	},
}

func init() {
	draftsCmd.Flags().StringSliceVar(&draftStatuses, "status", nil, "only drafts in these statuses")
	draftsCmd.Flags().IntVarP(&draftLimit, "limit", "n", 50, "maximum drafts to list")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(sendCmd, draftsCmd, statsCmd, tokenCmd)
}

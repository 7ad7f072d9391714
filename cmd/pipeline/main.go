// Command pipeline runs single stages of the sourcing pipeline from the
// shell, for cron jobs and local debugging.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raushankrgupta/product-sourcing/config"
	"github.com/raushankrgupta/product-sourcing/pipeline"
	"github.com/raushankrgupta/product-sourcing/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.Config
	logger *zap.Logger
	app    *pipeline.App
)

var rootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "Product sourcing pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if app != nil {
		app.Close(context.WithoutCancel(ctx))
	}
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadApp is the PreRunE of every command that needs the stores.
func loadApp(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd, args); err != nil {
		return err
	}
	a, err := pipeline.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	app = a
	return nil
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig()
	if err != nil {
		return err
	}
	cfg = c
	logger = utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

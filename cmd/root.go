package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "heatos",
	Short: "Lead intake API with Salesforce sync",
	Long:  "Accepts heat pump lead submissions over HTTP, stores them, classifies their funnel stage and forwards them to Salesforce in the background.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

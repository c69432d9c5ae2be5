package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NonStopMan/vamo-heatos/internal/metrics"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Forward pending leads to the CRM",
}

var syncOnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single sync tick and print its outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sched, closeLock, err := newScheduler(ctx, st, salesforceTokens(), nil)
		if err != nil {
			return err
		}
		defer closeLock() //nolint:errcheck

		outcome, err := sched.Tick(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome)
		return nil
	},
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync scheduler without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sched, closeLock, err := newScheduler(ctx, st, salesforceTokens(), metrics.New())
		if err != nil {
			return err
		}
		defer closeLock() //nolint:errcheck

		sched.Run(ctx)
		return nil
	},
}

func init() {
	syncCmd.AddCommand(syncOnceCmd, syncRunCmd)
	rootCmd.AddCommand(syncCmd)
}

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NonStopMan/vamo-heatos/internal/api"
	"github.com/NonStopMan/vamo-heatos/internal/health"
	"github.com/NonStopMan/vamo-heatos/internal/intake"
	"github.com/NonStopMan/vamo-heatos/internal/metrics"
	"github.com/NonStopMan/vamo-heatos/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort   int
	serveNoSync bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead API and the CRM sync scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()
		tokens := salesforceTokens()

		svc := intake.NewService(st, cfg.Links, m)
		srv := api.NewServer(cfg.Server, svc, health.NewChecker(st, tokens), m)

		var sched *syncer.Scheduler
		if serveNoSync {
			zap.L().Info("crm sync scheduler disabled for this process")
		} else {
			var closeLock func() error
			sched, closeLock, err = newScheduler(ctx, st, tokens, m)
			if err != nil {
				return err
			}
			defer closeLock() //nolint:errcheck
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(srv.ListenAndServe)

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if sched != nil {
			g.Go(func() error {
				sched.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "serve the API only and leave CRM sync to a separate worker")
	rootCmd.AddCommand(serveCmd)
}

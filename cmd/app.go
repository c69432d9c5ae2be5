package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/crm"
	"github.com/NonStopMan/vamo-heatos/internal/lock"
	"github.com/NonStopMan/vamo-heatos/internal/metrics"
	"github.com/NonStopMan/vamo-heatos/internal/store"
	"github.com/NonStopMan/vamo-heatos/internal/syncer"
	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "heatos.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and applies the schema.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// salesforceTokens returns the shared token cache, or nil when the CRM is
// disabled.
func salesforceTokens() salesforce.TokenSource {
	if !cfg.Salesforce.IsEnabled() {
		return nil
	}
	return cfg.Salesforce.Authenticator()
}

// newScheduler wires the sync scheduler, adding the Redis tick lock when
// configured. The returned close func releases the Redis connection.
func newScheduler(ctx context.Context, st store.Store, tokens salesforce.TokenSource, m *metrics.Metrics) (*syncer.Scheduler, func() error, error) {
	adapter := crm.NewWithTokens(cfg.Salesforce, tokens)
	opts := []syncer.Option{syncer.WithMetrics(m)}
	closeFn := func() error { return nil }

	if cfg.Redis.Enabled() {
		locker, closeRedis, err := lock.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, syncer.WithLocker(locker))
		closeFn = closeRedis
		zap.L().Info("crm sync tick lock enabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("ttl", time.Duration(cfg.Redis.LockTTLSecs)*time.Second),
		)
	}

	return syncer.New(st, adapter, cfg.Sync, opts...), closeFn, nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/localchat/pkg/backend"
	"mercator-hq/localchat/pkg/config"
	"mercator-hq/localchat/pkg/store"
	"mercator-hq/localchat/pkg/store/backup"
	"mercator-hq/localchat/pkg/telemetry/health"
	"mercator-hq/localchat/pkg/upstream"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Backend: cfg.Storage.Backend,
		SQLite: store.SQLiteConfig{
			Path:        cfg.Storage.SQLite.Path,
			Driver:      cfg.Storage.SQLite.Driver,
			WALMode:     cfg.Storage.SQLite.WALMode,
			BusyTimeout: cfg.Storage.SQLite.BusyTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	return st, nil
}

func newUpstreamClient(cfg *config.Config) *upstream.Client {
	return upstream.NewClient(upstream.Config{
		APIKey:                cfg.Upstream.APIKey,
		ConnectTimeout:        cfg.Upstream.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout,
		MaxRetries:            cfg.Upstream.MaxRetries,
		RetryBackoff:          cfg.Upstream.RetryBackoff,
	})
}

func newBackuper(st store.Store, cfg *config.Config) *backup.Backuper {
	return backup.New(st, backup.Config{
		Schedule: cfg.Storage.Backup.Schedule,
		Dir:      cfg.Storage.Backup.Dir,
		Keep:     cfg.Storage.Backup.Keep,
	})
}

// newHealthChecker makes the store critical for readiness and probes both
// backends as optional checks. selector is consulted on every check so probes
// follow reloaded base URLs.
func newHealthChecker(st store.Store, client *upstream.Client, selector func() *backend.Selector) *health.Checker {
	checker := health.New(2 * time.Second)
	checker.Register("store", st.Ping)
	for _, kind := range []backend.Kind{backend.VLLM, backend.Ollama} {
		kind := kind
		checker.RegisterOptional("backend."+kind.String(), func(ctx context.Context) error {
			b, ok := selector().Backend(kind)
			if !ok {
				return fmt.Errorf("%s backend is not configured", kind)
			}
			return client.Probe(ctx, b.ModelsURL())
		})
	}
	return checker
}

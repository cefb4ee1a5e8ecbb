// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/partyline/partyline/internal/config"
	"github.com/partyline/partyline/internal/logging"
	"github.com/partyline/partyline/internal/observability"
	"github.com/partyline/partyline/internal/permcache"
	"github.com/partyline/partyline/internal/store"
)

// newBackendCmd creates the backend subcommand: the authoritative
// service in a split deployment. The rpc framing is defined in
// internal/rpc; the stream transport between nodes is supplied by the
// deployment platform, so this process serves health, metrics, and the
// cache maintenance loops.
func newBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Start the backend service (authoritative store + caches)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runBackend(cmd.Context(), cfg)
		},
	}

	def := config.Default()
	cmd.Flags().String("backend.database_url", "", "postgres connection string")
	cmd.Flags().String("backend.metrics_addr", def.Backend.MetricsAddr, "metrics/health HTTP address")
	cmd.Flags().String("log_format", def.LogFormat, "log format (json or text)")

	return cmd
}

func runBackend(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("backend", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Backend.DatabaseURL == "" {
		return oops.In("backend").Code("CONFIG_INVALID").Errorf("backend.database_url is required")
	}

	_, pool, err := store.Connect(ctx, cfg.Backend.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	obs := observability.NewServer(cfg.Backend.MetricsAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	metrics := obs.Metrics()
	obsErrs, err := obs.Start()
	if err != nil {
		return err
	}
	go func() {
		if obsErr := <-obsErrs; obsErr != nil {
			slog.Error("observability server failed", "error", obsErr)
		}
	}()

	cache := permcache.NewCache(
		permcache.WithSweepInterval(cfg.Backend.CacheSweepInterval),
		permcache.WithOpsCounter(metrics.PermCacheOps),
	)
	go cache.RunSweeper(ctx)

	slog.Info("backend ready",
		"metrics_addr", obs.Addr(),
		"sweep_interval", cfg.Backend.CacheSweepInterval,
	)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obs.Stop(shutdownCtx); err != nil {
		slog.Warn("observability shutdown failed", "error", err)
	}
	return nil
}

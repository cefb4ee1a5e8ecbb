// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/partyline/partyline/internal/backend"
	"github.com/partyline/partyline/internal/config"
	"github.com/partyline/partyline/internal/gateway"
	"github.com/partyline/partyline/internal/gateway/structure"
	"github.com/partyline/partyline/internal/logging"
	"github.com/partyline/partyline/internal/observability"
	"github.com/partyline/partyline/internal/permcache"
	"github.com/partyline/partyline/internal/store"
)

const shutdownTimeout = 5 * time.Second

// newGatewayCmd creates the gateway subcommand. The node runs the full
// stack in process: store, permission services, structural cache, and
// the websocket server. Multi-node deployments split the backend out
// over the rpc contract; that transport is provided by the platform.
func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Start a gateway node (websocket server + event fan-out)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runGateway(cmd.Context(), cfg)
		},
	}

	// Flag defaults mirror config.Default: posflag feeds unchanged
	// flags into the merge, so a zero default would shadow the file.
	def := config.Default()
	cmd.Flags().String("gateway.addr", def.Gateway.Addr, "websocket listen address")
	cmd.Flags().String("gateway.metrics_addr", def.Gateway.MetricsAddr, "metrics/health HTTP address")
	cmd.Flags().String("backend.database_url", "", "postgres connection string")
	cmd.Flags().String("log_format", def.LogFormat, "log format (json or text)")

	return cmd
}

func runGateway(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("gateway", version, cfg.LogFormat)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Backend.DatabaseURL == "" {
		return oops.In("gateway").Code("CONFIG_INVALID").Errorf("backend.database_url is required")
	}

	st, pool, err := store.Connect(ctx, cfg.Backend.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	obs := observability.NewServer(cfg.Gateway.MetricsAddr, func() bool { return true })
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

	perms := backend.NewPermissionService(st, cache, logger)
	structCache := structure.NewCache()
	registry := gateway.NewRegistry()
	dispatcher := gateway.NewDispatcher(registry, structCache, metrics)
	identify := backend.NewIdentifyService(st, perms, dispatcher, logger)

	origins, err := cfg.Gateway.OriginGlobs()
	if err != nil {
		return err
	}
	ws, err := gateway.NewServer(ctx, gateway.Config{
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Gateway.HeartbeatTimeout,
		ProbeInterval:     cfg.Gateway.ProbeInterval,
		SendQueue:         cfg.Gateway.SendQueue,
		AllowedOrigins:    origins,
	}, registry, structCache, identify, metrics)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Gateway.Addr,
		Handler:           ws,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrs := make(chan error, 1)
	go func() {
		httpErrs <- httpSrv.ListenAndServe()
	}()

	slog.Info("gateway ready",
		"addr", cfg.Gateway.Addr,
		"metrics_addr", obs.Addr(),
		"heartbeat_interval", cfg.Gateway.HeartbeatInterval,
	)

	select {
	case err := <-httpErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return oops.In("gateway").Code("LISTEN_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown failed", "error", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		slog.Warn("observability shutdown failed", "error", err)
	}
	return nil
}

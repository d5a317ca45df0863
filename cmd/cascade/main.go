// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cascadehr/cascade/internal/config"
	"github.com/cascadehr/cascade/internal/engine"
	"github.com/cascadehr/cascade/internal/engine/ledger"
	"github.com/cascadehr/cascade/internal/engine/module"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/logger"
	"github.com/cascadehr/cascade/internal/metrics"
	"github.com/cascadehr/cascade/internal/modules/learning"
	"github.com/cascadehr/cascade/internal/modules/performance"
	"github.com/cascadehr/cascade/internal/queue"
	"github.com/cascadehr/cascade/internal/scheduler"
	"github.com/cascadehr/cascade/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Str("version", version).Msg("Starting cascade trigger engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, &cfg.Telemetry, "cascade", version)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error initializing telemetry")
		os.Exit(1)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := shutdownTracing(sctx); err != nil {
			mainLog.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()

	if cfg.Engine.TableOverridesPath != "" {
		if err := trigger.LoadTableOverrides(cfg.Engine.TableOverridesPath); err != nil {
			mainLog.Error().Err(err).Msg("Error loading table overrides")
			os.Exit(1)
		}
	}

	ldg, err := ledger.NewGormLedger(&cfg.Database)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error opening execution ledger")
		os.Exit(1)
	}
	defer ldg.Close()
	if err := ldg.AutoMigrate(); err != nil {
		mainLog.Error().Err(err).Msg("Error migrating ledger schema")
		os.Exit(1)
	}
	if err := ldg.ValidateSchema(); err != nil {
		mainLog.Error().Err(err).Msg("Ledger schema validation failed")
		os.Exit(1)
	}

	registry := module.NewRegistry()
	for _, m := range []struct {
		desc    module.Descriptor
		handler module.Handler
	}{
		{learning.Descriptor(), learning.NewHandler()},
		{performance.Descriptor(), performance.NewHandler()},
	} {
		if err := registry.Register(m.desc, m.handler); err != nil {
			mainLog.Error().Err(err).Str("module", m.desc.ID).Msg("Error registering module")
			os.Exit(1)
		}
		if err := registry.Initialize(m.desc.ID); err != nil {
			mainLog.Error().Err(err).Str("module", m.desc.ID).Msg("Error initializing module")
			os.Exit(1)
		}
		mainLog.Info().Str("module", m.desc.ID).Str("version", m.desc.Version).Msg("Module registered")
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			mainLog.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving Prometheus metrics")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				mainLog.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	q, err := buildQueue(&cfg.Queue)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error creating trigger queue")
		os.Exit(1)
	}
	defer q.Close()

	eng := engine.New(registry, ldg,
		engine.WithQueue(q),
		engine.WithMetrics(sink),
		engine.WithHandlerTimeout(cfg.Engine.HandlerTimeout),
		engine.WithMaxHops(cfg.Engine.MaxHops),
	)

	dispatcher := engine.NewDispatcher(eng, q, 4)
	dispatcher.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(eng, sink, cfg.Scheduler.Entries)
		if err != nil {
			mainLog.Error().Err(err).Msg("Error creating scheduler")
			os.Exit(1)
		}
		sched.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	mainLog.Info().Str("signal", sig.String()).Msg("Shutting down")

	if sched != nil {
		sched.Stop()
	}
	cancel()
	dispatcher.Stop()
	if metricsSrv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := metricsSrv.Shutdown(sctx); err != nil {
			mainLog.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	mainLog.Info().Msg("Shutdown complete")
}

func buildQueue(cfg *config.QueueConfig) (queue.Queue, error) {
	switch cfg.Backend {
	case "channel":
		return queue.NewChannelQueue(cfg.Buffer), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return queue.NewRedisQueue(client, cfg.Key), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.Backend)
	}
}

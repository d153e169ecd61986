// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"grimm.is/flowshell/internal/api"
	"grimm.is/flowshell/internal/burst"
	"grimm.is/flowshell/internal/config"
	"grimm.is/flowshell/internal/controller"
	"grimm.is/flowshell/internal/controlloop"
	"grimm.is/flowshell/internal/dispatch"
	"grimm.is/flowshell/internal/flowtable"
	"grimm.is/flowshell/internal/logging"
	"grimm.is/flowshell/internal/metrics"
	"grimm.is/flowshell/internal/topology"
	"grimm.is/flowshell/internal/traffic"
)

func runServe(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LoggerConfig())
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve builds every component from cfg and runs until ctx is done or one of
// the long-running tasks fails.
func serve(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	m := metrics.NewEngine()

	table := flowtable.New(flowtable.Options{
		Logger:  logger.WithComponent("flowtable"),
		Metrics: m,
	})
	counter := traffic.NewCounter(m)
	registry := dispatch.NewRegistry(m)
	adapter := dispatch.NewAdapter(registry, cfg.Dispatch.Config, logger.WithComponent("dispatch"), m)

	static, err := topology.Load(cfg.Topology.File, logger.WithComponent("topology"))
	if err != nil {
		return err
	}
	topo := topology.NewStore(static, logger.WithComponent("topology"))

	ctrl := controller.New(controller.Options{
		Table:    table,
		Counter:  counter,
		Registry: registry,
		Topology: topo,
		Logger:   logger.WithComponent("controller"),
	})

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	loop, err := controlloop.New(controlloop.Options{
		Table:   table,
		Counter: counter,
		Config:  cfg.ControlLoop,
		Rand:    rng,
		Logger:  logger.WithComponent("controlloop"),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	monitor := traffic.NewMonitor(counter, cfg.Traffic, logger.WithComponent("traffic"), m)
	monitor.Start()
	defer monitor.Stop()

	serverCfg := api.DefaultServerConfig()
	serverCfg.StreamInterval = cfg.API.StreamInterval
	serverCfg.ShutdownTimeout = cfg.API.ShutdownTimeout
	server := api.NewServer(api.Options{
		Table:      table,
		Counter:    counter,
		Controller: ctrl,
		Injector:   burst.NewInjector(counter, logger.WithComponent("burst"), m),
		Topology:   topo,
		Loop:       loop,
		Dispatch:   adapter,
		Registry:   registry,
		Metrics:    m,
		Mode:       cfg.Mode,
		Config:     serverCfg,
		Logger:     logger.WithComponent("api"),
	})

	events := make(chan controller.Event, cfg.Dispatch.Loopback+1)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Mode == config.ModeBound {
		adapter.Start()
		defer adapter.Stop()
		table.Bind(adapter)

		attachLoopbacks(gctx, g, events, cfg.Dispatch, logger.WithComponent("datapath"))
	}

	g.Go(func() error { return ctrl.Run(gctx, events) })
	g.Go(func() error { return server.ListenAndServe(gctx, cfg.API.Listen) })
	if cfg.ControlLoopEnabled {
		g.Go(func() error { return loop.Run(gctx) })
	}
	if cfg.Topology.ReportInterval > 0 {
		g.Go(func() error { return topo.Report(gctx, cfg.Topology.ReportInterval) })
	}

	logger.Info("flowshell started",
		"mode", cfg.Mode,
		"listen", cfg.API.Listen,
		"control_loop", cfg.ControlLoopEnabled,
		"switches", len(static.Switches))

	err = g.Wait()
	logger.Info("flowshell stopped", "error", err)
	return err
}

// attachLoopbacks creates the in-process datapaths of bound mode and queues
// their switch-up events. events must have room for cfg.Loopback events.
// Each datapath is drained in g and closed once ctx is done.
func attachLoopbacks(ctx context.Context, g *errgroup.Group, events chan<- controller.Event, cfg config.DispatchConfig, logger *logging.Logger) {
	dps := make([]*dispatch.ChannelDatapath, 0, cfg.Loopback)
	for i := 1; i <= cfg.Loopback; i++ {
		dp := dispatch.NewChannelDatapath(uint64(i), cfg.LoopbackBuffer)
		dps = append(dps, dp)
		g.Go(func() error {
			dispatch.Drain(dp, logger)
			return nil
		})
		events <- controller.Event{Type: controller.EventSwitchUp, Datapath: dp, DatapathID: dp.ID()}
	}

	g.Go(func() error {
		<-ctx.Done()
		for _, dp := range dps {
			dp.Close()
		}
		return nil
	})
}

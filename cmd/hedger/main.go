package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/router"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 5*time.Second, "Config reload interval (0=disable)")
	metricsInterval := flag.Duration("metrics-interval", time.Minute, "Metrics snapshot log interval (0=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if rt.Profiling.Enable {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: rt.Profiling.ApplicationName,
			ServerAddress:   rt.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	st, closeStore, err := openStore(rt.Store)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer closeStore()

	metrics := obs.NewMetrics()
	rtr := router.New(rt.Router, rt.Registry, rt.Gateways)
	eng := engine.New(rt.Engine, rtr, rt.Gateways, st, obs.LogReporter{}, metrics)

	if *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, eng)
	}
	if *metricsInterval > 0 {
		go logMetrics(ctx, *metricsInterval, metrics)
	}

	logs.Infof("hedger started, instruments: %v, accounts: %d",
		rt.Registry.Instruments(), len(rt.Gateways))
	if err := eng.Run(ctx); err != nil {
		log.Fatalf("engine stopped: %v", err)
	}
}

// openStore connects to PostgreSQL when configured, otherwise falls
// back to the in-memory store.
func openStore(cfg ops.StoreConfig) (store.Store, func(), error) {
	if !cfg.Enabled() {
		logs.Warn("no database configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	client, err := conn.New(cfg.ConnOption())
	if err != nil {
		return nil, nil, err
	}
	pg, err := store.NewPostgres(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return pg, func() { _ = client.Close() }, nil
}

// watchConfig polls the config file and pushes engine tunables into
// the running engine. Accounts, routes and the store require a
// restart.
func watchConfig(ctx context.Context, path string, interval time.Duration, eng *engine.Engine) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Errorf("config stat failed, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			cfg, err := ops.LoadEngine(path)
			if err != nil {
				logs.Errorf("config reload failed, err: %+v", err)
				continue
			}
			eng.UpdateConfig(cfg)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}

func logMetrics(ctx context.Context, interval time.Duration, metrics *obs.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logs.Infof("metrics: %+v", metrics.Snapshot())
		}
	}
}

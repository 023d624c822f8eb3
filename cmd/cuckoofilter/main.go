package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cuckoofilter/internal/filter"
	"cuckoofilter/internal/logging"
	"cuckoofilter/internal/persistence"
	"cuckoofilter/pkg/config"
)

var (
	configPath  = flag.String("config", "configs/cuckoofilter.yaml", "Path to configuration file")
	instance    = flag.String("instance", "", "Override instance.name from the config file")
	loadSnaps   = flag.Bool("load-snapshots", false, "Load each filter from its most recent snapshot on startup")
	demoKeys    = flag.Int("demo-keys", 0, "If > 0, add this many synthetic keys to the first filter and report load factor")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *instance != "" {
		cfg.Instance.Name = *instance
	}

	logger, err := logging.InitializeFromConfig(cfg.Instance.Name, logging.LogConfig{
		Level:         cfg.Logging.Level,
		EnableConsole: cfg.Logging.EnableConsole,
		EnableFile:    cfg.Logging.EnableFile,
		LogFile:       cfg.Logging.LogFile,
		LogDir:        cfg.Logging.LogDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	startupID := logging.NewCorrelationID()
	ctx := logging.WithCorrelationID(context.Background(), startupID)

	logging.Info(ctx, cfg.Instance.Name, logging.ActionInit, "cuckoofilter starting", map[string]interface{}{
		"config_file": *configPath,
		"filters":     len(cfg.Filters),
	})

	if err := os.MkdirAll(cfg.Instance.DataDir, 0755); err != nil {
		logging.Error(ctx, cfg.Instance.Name, logging.ActionInit, "failed to create data directory", err)
		os.Exit(1)
	}

	snapshots := persistence.NewSnapshotManager(cfg.Persistence, cfg.Instance.DataDir)

	filters := make(map[string]*filter.CuckooFilter, len(cfg.Filters))
	for i := range cfg.Filters {
		fc := cfg.Filters[i]

		var cf *filter.CuckooFilter
		var capacity uint64

		if *loadSnaps && cfg.Persistence.Enabled {
			cf, capacity, err = snapshots.Load(fc.Name)
		}
		if cf == nil {
			cf, capacity, err = filter.NewFromConfig(&fc)
		}
		if err != nil {
			logging.Error(ctx, cfg.Instance.Name, logging.ActionInit, fmt.Sprintf("failed to initialize filter %s", fc.Name), err)
			os.Exit(1)
		}

		filters[fc.Name] = cf
		fmt.Printf("filter %q ready: capacity=%d fp_rate=%.6f\n", fc.Name, capacity, cf.FalsePositiveRate())
	}

	if *demoKeys > 0 {
		runDemo(ctx, cfg.Instance.Name, filters[cfg.Filters[0].Name], *demoKeys)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if cfg.Persistence.Enabled {
		for name, cf := range filters {
			if path, err := snapshots.Save(cf); err != nil {
				logging.Error(ctx, cfg.Instance.Name, logging.ActionDump, fmt.Sprintf("failed to snapshot filter %s", name), err)
			} else {
				fmt.Printf("filter %q snapshotted to %s\n", name, path)
			}
		}
	}

	logging.Info(ctx, cfg.Instance.Name, "shutdown", "cuckoofilter stopped")
}

// runDemo adds n synthetic keys via the host-side xxhash convenience path
// and reports the resulting load factor, to give the binary something
// concrete to do without a network front end.
func runDemo(ctx context.Context, instanceName string, cf *filter.CuckooFilter, n int) {
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("demo-key-%d", i))
		if err := cf.AddKey(key); err != nil {
			logging.Warn(ctx, instanceName, logging.ActionAdd, "demo insert stopped early", map[string]interface{}{"at": i, "error": err.Error()})
			break
		}
	}
	stats := cf.GetStats()
	fmt.Printf("demo: added up to %d keys, load_factor=%.4f degraded=%v\n", n, stats.LoadFactor, stats.Degraded)
}

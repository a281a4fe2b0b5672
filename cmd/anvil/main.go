// Package main is the entry point for the anvil telemetry agent. It loads
// the layered configuration, wires datasources into probes, and serves the
// metrics scrape endpoint until the process is signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ironhearth/anvil/internal/collector"
	"github.com/ironhearth/anvil/internal/config"
	"github.com/ironhearth/anvil/internal/datasource"
	"github.com/ironhearth/anvil/internal/nut"
	"github.com/ironhearth/anvil/internal/scrape"
	"github.com/ironhearth/anvil/internal/server"
)

var (
	// version is set at build time via -ldflags.
	version = "dev"

	configPath  = flag.String("config", "", "Path to configuration file (default: auto-discover)")
	listenAddr  = flag.String("listen", "", "Listen address override, e.g. :8081")
	logLevel    = flag.String("log-level", "", "Log level override: debug, info, warn or error")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("anvil %s\n", version)
		os.Exit(0)
	}

	cli := config.CLIOverrides{Listen: *listenAddr, LogLevel: *logLevel}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadLayered(cli, embeddedConfig, *configPath)
	} else {
		cfg, err = config.LoadLayered(cli, embeddedConfig)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer logger.Sync()

	logger.Info("Starting anvil", zap.String("version", version))

	writeInitialConfig(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := collector.NewRegistry(logger)
	if err := registerProbes(ctx, registry, cfg, logger); err != nil {
		logger.Fatal("Probe registration failed", zap.Error(err))
	}

	coord := scrape.NewCoordinator(registry, registry.Gatherer(), cfg.Scrape.TTL.Duration)
	srv := server.New(cfg.HTTP, coord, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
	logger.Info("Agent stopped")
}

// registerProbes constructs every probe over its datasource and registers
// it. Disabled probes are swapped for no-ops inside Register; datasources
// behind disabled probes are never even constructed.
func registerProbes(ctx context.Context, registry *collector.Registry, cfg *config.Config, logger *zap.Logger) error {
	reader := datasource.OSReader{}
	sampleGap := cfg.Scrape.SampleGap.Duration

	probes := []collector.Probe{
		collector.NewCPUProbe(cfg.Collectors.CPU,
			datasource.NewProcStat(reader),
			datasource.NewCPUFreq(reader),
			sampleGap),
		collector.NewMemoryProbe(cfg.Collectors.Memory, datasource.NewMemInfo(reader)),
		collector.NewNetworkProbe(cfg.Collectors.Network, datasource.NewNetDev(reader)),
		collector.NewDiskIOProbe(cfg.Collectors.DiskIO, datasource.NewDiskStats(reader)),
		collector.NewSMARTProbe(cfg.Collectors.SMART,
			datasource.NewSmartCtl(cfg.Collectors.SMART.Binary, datasource.ExecRunner{}),
			logger),
		collector.NewUPSProbe(cfg.Collectors.UPS,
			nut.NewClient(cfg.Collectors.UPS.Host, cfg.Collectors.UPS.Port)),
		collector.NewZFSProbe(cfg.Collectors.ZFS,
			datasource.NewZFS(datasource.DefaultZFSKstatDir, reader)),
		collector.NewHostProbe(cfg.Collectors.Host),
		dockerProbe(cfg.Collectors.Docker, logger),
	}

	for _, p := range probes {
		if err := registry.Register(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// dockerProbe builds the container probe. Client construction only talks to
// the environment (DOCKER_HOST et al.), but it can still fail on a malformed
// endpoint; that downgrades the probe to a no-op rather than killing the
// agent, since every other collector is unaffected.
func dockerProbe(cfg config.DockerConfig, logger *zap.Logger) collector.Probe {
	if !cfg.Enabled {
		return collector.NewDockerProbe(cfg, nil, logger)
	}

	client, err := datasource.NewDockerClient()
	if err != nil {
		logger.Warn("Docker client unavailable, container metrics disabled", zap.Error(err))
		return collector.NewNoOp("docker")
	}
	return collector.NewDockerProbe(cfg, client, logger)
}

// writeInitialConfig drops the embedded default config at the platform's
// preferred path on first run, so there is a file to edit. Best effort: a
// read-only filesystem just means the agent keeps running on defaults.
func writeInitialConfig(logger *zap.Logger) {
	if *configPath != "" || config.Locate() != "" {
		return
	}

	path := config.DefaultPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("Could not create config directory", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, embeddedConfig, 0640); err != nil {
		logger.Warn("Could not write initial config", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("Wrote initial config", zap.String("path", path))
}

// initLogger builds the zap logger: a human-readable console core, teed
// with a JSON file core when log.file is set.
func initLogger(cfg *config.Config) *zap.Logger {
	var level zapcore.Level
	switch cfg.Log.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.Log.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}
	if cfg.Log.File != "" {
		file, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err == nil {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderConfig),
				zapcore.AddSync(file),
				level,
			))
		}
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	return zap.New(zapcore.NewTee(cores...))
}

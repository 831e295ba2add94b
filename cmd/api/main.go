package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"homelab-metrics/internal/collector"
	"homelab-metrics/internal/config"
	"homelab-metrics/internal/repository"
	"homelab-metrics/internal/router"
	"homelab-metrics/internal/util"
)

func main() {
	app := cli.NewApp()
	app.Name = "homelab-metrics-api"
	app.Usage = "serve node utilization history for the homelab dashboard"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Value: "config.yaml",
			Usage: "path to the YAML config file (defaults are used when missing)",
		},
		cli.StringFlag{
			Name:  "log-level,l",
			Usage: "override log.level [debug, info, warn, error]",
		},
		cli.StringFlag{
			Name:  "addr",
			Usage: "override server.addr",
		},
		cli.StringFlag{
			Name:  "data-dir",
			Usage: "override storage.data_dir",
		},
		cli.BoolFlag{
			Name:  "collect-host",
			Usage: "record this machine's utilization (same as collector.enabled)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", time.Now().Format(time.RFC3339), err)
		os.Exit(1)
	}
}

func loadConfig(cliContext *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cliContext.String("config"))
	if err != nil {
		return nil, err
	}

	if v := cliContext.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cliContext.String("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := cliContext.String("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if cliContext.Bool("collect-host") {
		cfg.Collector.Enabled = true
	}
	return cfg, cfg.Validate()
}

func LoggerInitialize(cfg config.LogConfig) (*util.MetricsLogger, error) {
	level, err := util.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	util.SetCommonLoggerAttributes(level)

	logger := &util.MetricsLogger{}
	if err := logger.Init(util.LoggerConfig{
		Dir:       cfg.Dir,
		FileName:  cfg.File,
		MaxSizeMB: cfg.MaxSizeMB,
		Console:   cfg.Console,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.LogEvent(util.LOG_LEVEL_INFO, "Service started")
	return logger, nil
}

func run(cliContext *cli.Context) error {
	cfg, err := loadConfig(cliContext)
	if err != nil {
		return err
	}

	logger, err := LoggerInitialize(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.DeInit()

	store := repository.NewSQLiteStore(cfg.DBPath(), repository.WithLogger(logger.Zap()))
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize metric store: %w", err)
	}
	defer store.Close()

	store.Start()

	if cfg.Collector.Enabled {
		source, err := collector.NewHostSource(context.Background(), cfg.Collector.NodeID)
		if err != nil {
			return err
		}
		poller := collector.NewPoller(source, store, cfg.Collector.Interval, logger.Zap())
		poller.Start()
		defer poller.Stop()

		logger.LogEvent(util.LOG_LEVEL_INFO, "Recording host utilization as node", source.NodeID())
	}

	handler := router.NewRouter(store, logger, cfg.API.DefaultNode)
	return router.Run(cfg.Server.Addr, cfg.Server.ShutdownTimeout, handler, logger)
}

package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"homelab-metrics/internal/collector"
	"homelab-metrics/internal/config"
	"homelab-metrics/internal/domain"
	"homelab-metrics/internal/repository"
)

func main() {
	app := cli.NewApp()
	app.Name = "homelab-metrics-ingest"
	app.Usage = "feed and inspect the node utilization store"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config,c",
			Value: "config.yaml",
			Usage: "path to the YAML config file",
		},
		cli.StringFlag{
			Name:  "data-dir",
			Usage: "override storage.data_dir",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "record this machine's utilization until interrupted",
			Action: cmdRun,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "node", Usage: "node id (default: collector.node_id or hostname)"},
				cli.DurationFlag{Name: "interval", Usage: "poll interval (default: collector.interval)"},
			},
		},
		{
			Name:   "seed",
			Usage:  "backfill synthetic history for a node",
			Action: cmdSeed,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "node", Value: "pve", Usage: "node id to backfill"},
				cli.DurationFlag{Name: "span", Value: 24 * time.Hour, Usage: "how far back to generate samples"},
			},
		},
		{
			Name:   "stats",
			Usage:  "print stored nodes, sample counts and database size",
			Action: cmdStats,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", time.Now().Format(time.RFC3339), err)
		os.Exit(1)
	}
}

func openStore(cliContext *cli.Context, logger *zap.Logger) (*config.Config, *repository.SQLiteStore, error) {
	cfg, err := config.Load(cliContext.GlobalString("config"))
	if err != nil {
		return nil, nil, err
	}
	if v := cliContext.GlobalString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}

	store := repository.NewSQLiteStore(cfg.DBPath(), repository.WithLogger(logger))
	if err := store.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite store for ingestion: %w", err)
	}
	return cfg, store, nil
}

func cmdRun(cliContext *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, store, err := openStore(cliContext, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	nodeID := cfg.Collector.NodeID
	if v := cliContext.String("node"); v != "" {
		nodeID = v
	}
	interval := cfg.Collector.Interval
	if v := cliContext.Duration("interval"); v > 0 {
		interval = v
	}

	source, err := collector.NewHostSource(context.Background(), nodeID)
	if err != nil {
		return err
	}

	poller := collector.NewPoller(source, store, interval, logger)
	poller.Start()
	defer poller.Stop()

	logger.Info("recording host utilization", zap.String("node", source.NodeID()), zap.String("db", cfg.DBPath()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	return nil
}

func cmdSeed(cliContext *cli.Context) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	_, store, err := openStore(cliContext, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	nodeID := cliContext.String("node")
	span := cliContext.Duration("span")
	if nodeID == "" {
		return domain.ErrEmptyNodeID
	}
	if span <= 0 || span > domain.RetentionHorizon {
		return fmt.Errorf("span must be within (0, %s]", domain.RetentionHorizon)
	}

	endTime := time.Now()
	startTime := endTime.Add(-span)
	logger.Info("seeding samples",
		zap.String("node", nodeID),
		zap.Time("from", startTime),
		zap.Time("to", endTime),
	)

	n, err := generateAndIngest(context.Background(), store, nodeID, startTime, endTime, rand.New(rand.NewSource(endTime.UnixNano())))
	if err != nil {
		return err
	}
	logger.Info("data ingestion complete", zap.Int("samples", n))
	return nil
}

// generateAndIngest writes a random walk of cpu and ram readings spaced one
// throttle window apart.
func generateAndIngest(ctx context.Context, store *repository.SQLiteStore, nodeID string, startTime, endTime time.Time, rnd *rand.Rand) (int, error) {
	cpu, ram := 20.0, 50.0

	n := 0
	for t := startTime; !t.After(endTime); t = t.Add(domain.ThrottleWindow) {
		cpu = clampPercent(cpu + rnd.NormFloat64()*3)
		ram = clampPercent(ram + rnd.NormFloat64()*0.5)

		sample := domain.Sample{
			NodeID:     nodeID,
			CPUPercent: math.Round(cpu*100) / 100,
			RAMPercent: math.Round(ram*100) / 100,
			Timestamp:  t.UnixMilli(),
		}
		if err := store.Insert(ctx, sample); err != nil {
			return n, fmt.Errorf("error inserting data for timestamp %d: %w", sample.Timestamp, err)
		}
		n++
	}
	return n, nil
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func cmdStats(cliContext *cli.Context) error {
	cfg, store, err := openStore(cliContext, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	size, err := store.DBSize(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Node", "Samples", "Oldest", "Newest"})
	for _, st := range stats {
		table.Append([]string{
			st.NodeID,
			strconv.FormatInt(st.Count, 10),
			humanize.Time(time.UnixMilli(st.Oldest)),
			humanize.Time(time.UnixMilli(st.Newest)),
		})
	}
	table.Render()

	fmt.Printf("\n%s: %s\n", cfg.DBPath(), humanize.Bytes(size))
	return nil
}

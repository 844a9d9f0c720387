// Command semantix-train runs the training consumer once against the
// approved stream and prints the run summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/rpggio/semantix/internal/config"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/sqlite"
)

type options struct {
	runCfg training.RunConfig
	reset  bool
	list   bool
}

func parseFlags(args []string, defaults config.TrainingConfig, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("semantix-train", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.runCfg.LabelFilter, "label", defaults.LabelFilter, "only include items with at least one vote for this label")
	fs.IntVar(&opts.runCfg.QualityMin, "quality-min", defaults.QualityMin, "minimum aggregated quality")
	fs.IntVar(&opts.runCfg.MaxRecords, "max-records", defaults.MaxRecords, "stop after this many approved entries (0 = all)")
	fs.IntVar(&opts.runCfg.BatchSize, "batch-size", defaults.BatchSize, "records per artifact")
	fs.BoolVar(&opts.reset, "reset", false, "discard the checkpoint for this configuration before running")
	fs.BoolVar(&opts.list, "list", false, "list checkpoints and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if _, err := opts.runCfg.Validate(); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	opts, err := parseFlags(os.Args[1:], cfg.Training, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "flag error: %v\n", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, logger); err != nil {
		logger.Error("training run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer, logger *slog.Logger) error {
	checkpoints, err := checkpoint.Open(cfg.Training.CheckpointPath)
	if err != nil {
		return err
	}
	defer checkpoints.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if opts.list {
		cps, err := checkpoints.List()
		if err != nil {
			return err
		}
		return enc.Encode(cps)
	}

	runCfg, err := opts.runCfg.Validate()
	if err != nil {
		return err
	}
	if opts.reset {
		if err := checkpoints.Reset(runCfg.Key()); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("checkpoint reset", "run_key", runCfg.Key())
		}
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	artifacts, err := artifact.NewWriter(cfg.Training.ArtifactsDir, logger)
	if err != nil {
		return err
	}

	// Progress is persisted but not fanned out; no subscribers live here.
	streamLog := eventlog.NewLog(sqlite.NewStreamRepository(db), nil, logger)
	items := item.NewService(sqlite.NewItemRepository(db), streamLog, cfg.Ingest.MaxPayloadBytes, logger)
	consumer := training.NewConsumer(items, streamLog, artifacts, checkpoints, nil, logger)

	result, err := consumer.Run(ctx, runCfg)
	if err != nil {
		return err
	}
	return enc.Encode(result)
}

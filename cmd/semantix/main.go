package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/rpggio/semantix/internal/config"
	"github.com/rpggio/semantix/internal/domain/approval"
	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/labeling"
	"github.com/rpggio/semantix/internal/mcp"
	"github.com/rpggio/semantix/internal/sqlite"
	"github.com/rpggio/semantix/internal/transport"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := openRotatingFile(cfg.Log.Path, maxLogSizeBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("semantix stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := ensureDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	fanout := eventlog.NewFanout(eventlog.WithBufferSize(cfg.Fanout.Buffer), eventlog.WithLogger(logger))
	streamLog := eventlog.NewLog(sqlite.NewStreamRepository(db), fanout, logger)
	itemRepo := sqlite.NewItemRepository(db)
	ledger := vote.NewLedger(sqlite.NewVoteRepository(db), logger)
	items := item.NewService(itemRepo, streamLog, cfg.Ingest.MaxPayloadBytes, logger)
	approvalSvc := approval.NewService(itemRepo, ledger, sqlite.NewDecisionRepository(db), streamLog, cfg.Voting, logger)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	var (
		trainer   *training.Consumer
		artifacts *artifact.Writer
	)
	if cfg.Training.Enabled {
		checkpoints, err := checkpoint.Open(cfg.Training.CheckpointPath)
		if err != nil {
			return err
		}
		defer checkpoints.Close()
		artifacts, err = artifact.NewWriter(cfg.Training.ArtifactsDir, logger)
		if err != nil {
			return err
		}
		trainer = training.NewConsumer(items, streamLog, artifacts, checkpoints, nil, logger)
	}

	mcpServices := mcp.Services{Items: items, Approval: approvalSvc, Streams: streamLog}
	if trainer != nil {
		mcpServices.Trainer = trainer
	}
	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcpServices,
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if trainer != nil {
		runCfg := training.RunConfig{
			LabelFilter: cfg.Training.LabelFilter,
			QualityMin:  cfg.Training.QualityMin,
			MaxRecords:  cfg.Training.MaxRecords,
			BatchSize:   cfg.Training.BatchSize,
		}
		worker := training.NewWorker(trainer, runCfg, cfg.Training.PollInterval, fanout, logger)
		g.Go(func() error { return worker.Run(ctx) })
	}
	if cfg.Labeling.Enabled {
		labeler := labeling.NewRunner(items, approvalSvc, fanout, cfg.Labeling.Concurrency, logger, labeling.NewKeywords())
		g.Go(func() error { return labeler.Run(ctx) })
	}

	if cfg.Transport.Mode == "stdio" {
		g.Go(func() error { return runStdioMode(ctx, logger, mcpServer) })
	} else {
		svc := transport.Services{
			Items:    items,
			Approval: approvalSvc,
			Streams:  streamLog,
			Events:   fanout,
		}
		if trainer != nil {
			svc.Trainer = trainer
			svc.Artifacts = artifacts
		}
		opts := transport.Options{
			MCP: sdkmcp.NewStreamableHTTPHandler(
				func(*http.Request) *sdkmcp.Server { return mcpServer },
				&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
			),
			Logger: logger,
		}
		if cfg.Auth.Enabled {
			opts.Auth = transport.AuthMiddleware(apiKeys)
		}
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		g.Go(func() error { return runHTTPMode(ctx, logger, addr, transport.NewServer(svc, opts)) })
	}

	logger.Info("semantix started",
		"transport", cfg.Transport.Mode,
		"auth", cfg.Auth.Enabled,
		"vote_threshold", cfg.Voting.VoteThreshold,
		"quality_min", cfg.Voting.QualityMin,
		"training", cfg.Training.Enabled,
		"labeling", cfg.Labeling.Enabled,
	)
	return g.Wait()
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

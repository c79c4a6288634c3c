// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flyingrobots/go-redis-work-queue/internal/admin"
	"github.com/flyingrobots/go-redis-work-queue/internal/batchengine"
	"github.com/flyingrobots/go-redis-work-queue/internal/config"
	"github.com/flyingrobots/go-redis-work-queue/internal/enqueuer"
	"github.com/flyingrobots/go-redis-work-queue/internal/obs"
	"github.com/flyingrobots/go-redis-work-queue/internal/orchestrator"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/flyingrobots/go-redis-work-queue/internal/redisclient"
	"github.com/flyingrobots/go-redis-work-queue/internal/retrymanager"
	"github.com/flyingrobots/go-redis-work-queue/internal/uploader"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	var role string
	var configPath string
	var driveCmd string
	var showVersion bool

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&role, "role", "agent", "Role to run: agent|enqueue|drive|admin")
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.StringVar(&driveCmd, "drive-cmd", "pending", "Drive command for -role=drive: pending|retrying|failing")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rdb := redisclient.New(cfg)
	defer rdb.Close()

	store := queuestore.New(rdb)
	up := uploader.New(cfg, logger)
	engine := batchengine.New(store, up, cfg, logger)
	retry := retrymanager.New(store, up, cfg, logger)
	orch := orchestrator.New(store, engine, retry, logger)

	metricsSrv := obs.StartMetricsServer(cfg)
	defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()

	switch role {
	case "enqueue":
		eq := enqueuer.New(cfg, store, logger)
		if err := eq.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatal("enqueuer error", obs.Err(err))
		}
	case "drive":
		runDrive(ctx, orch, logger, driveCmd)
	case "admin":
		srv := admin.New(cfg.Admin.Addr, store, orch, logger)
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		if err := srv.Start(); err != nil && ctx.Err() == nil {
			logger.Fatal("admin server error", obs.Err(err))
		}
	case "agent":
		obs.StartQueueLengthUpdater(ctx, store, 2*time.Second, logger)

		srv := admin.New(cfg.Admin.Addr, store, orch, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("admin server stopped", obs.Err(err))
			}
		}()

		c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
		mustAdd(c, cfg.Driver.PendingSchedule, func() {
			if _, err := orch.UploadPending(ctx); err != nil {
				logger.Error("upload_pending failed", obs.Err(err))
			}
		}, logger)
		mustAdd(c, cfg.Driver.RetryingSchedule, func() {
			if _, err := orch.UploadRetrying(ctx); err != nil {
				logger.Error("upload_retrying failed", obs.Err(err))
			}
		}, logger)
		mustAdd(c, cfg.Driver.FailingSchedule, func() {
			if _, err := orch.UploadFailing(ctx); err != nil {
				logger.Error("upload_failing failed", obs.Err(err))
			}
		}, logger)
		c.Start()

		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		_ = srv.Shutdown(context.Background())
	default:
		logger.Fatal("unknown role", obs.String("role", role))
	}
}

// mustAdd registers a drive operation on the cron schedule. Bad
// schedule strings are a config error caught at startup, not a
// runtime condition to recover from.
func mustAdd(c *cron.Cron, spec string, fn func(), logger *zap.Logger) {
	if _, err := c.AddFunc(spec, fn); err != nil {
		logger.Fatal("invalid cron schedule", obs.String("schedule", spec), obs.Err(err))
	}
}

func runDrive(ctx context.Context, orch *orchestrator.Orchestrator, logger *zap.Logger, cmd string) {
	var summary orchestrator.Summary
	var err error
	switch cmd {
	case "pending":
		summary, err = orch.UploadPending(ctx)
	case "retrying":
		summary, err = orch.UploadRetrying(ctx)
	case "failing":
		summary, err = orch.UploadFailing(ctx)
	default:
		logger.Fatal("unknown drive command", obs.String("cmd", cmd))
	}
	if err != nil {
		logger.Fatal("drive command failed", obs.String("cmd", cmd), obs.Err(err))
	}
	b, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(b))
}

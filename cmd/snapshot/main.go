// Package main runs the daily reserve snapshot.
//
// Usage:
//
//	snapshot              wait for the configured UTC hour and run once a day
//	snapshot run [date]   run once for date (YYYY-MM-DD, default today) and exit
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eth-reserves/internal/app"
	"github.com/eth-reserves/internal/config"
	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/service"
	"github.com/eth-reserves/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.InitLogging(cfg, "snapshot")

	a, err := app.New(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize application")
		logging.Flush(2 * time.Second)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	var code int
	if len(os.Args) > 1 && os.Args[1] == "run" {
		code = runOnce(ctx, a.Job, os.Args[2:])
	} else {
		code = schedule(ctx, a.Job, cfg.Snapshot.ScheduleHourUTC)
	}

	stop()
	a.Close()
	logging.Flush(2 * time.Second)
	os.Exit(code)
}

func runOnce(ctx context.Context, job *service.SnapshotJob, args []string) int {
	logger := logging.GetGlobalLogger()

	var day types.SnapshotDay
	if len(args) > 0 {
		parsed, err := types.ParseSnapshotDay(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q: expected YYYY-MM-DD\n", args[0])
			return 2
		}
		day = parsed
	}

	result, err := job.Run(ctx, day)
	if err != nil {
		entry := logger.WithError(err)
		if result != nil {
			entry = entry.WithFields(map[string]interface{}{
				"day":       result.Day.String(),
				"companies": len(result.Companies),
				"failures":  len(result.Failures),
			})
		}
		entry.Error("Snapshot run failed")
		return 1
	}

	logger.WithFields(map[string]interface{}{
		"day":       result.Day.String(),
		"companies": len(result.Companies),
		"failures":  len(result.Failures),
		"alerts":    len(result.Alerts),
	}).Info("Snapshot run completed")
	return 0
}

func schedule(ctx context.Context, job *service.SnapshotJob, hourUTC int) int {
	logger := logging.GetGlobalLogger()

	scheduler := service.NewSnapshotScheduler(job, hourUTC)
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start scheduler")
		return 1
	}
	logger.WithFields(map[string]interface{}{
		"hourUtc": hourUTC,
		"nextRun": scheduler.NextRun(time.Now()).Format(time.RFC3339),
	}).Info("Snapshot scheduler started")

	<-ctx.Done()
	if err := scheduler.Stop(); err != nil {
		logger.WithError(err).Warn("Scheduler stop failed")
	}
	logger.Info("Snapshot scheduler stopped")
	return 0
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/aggregation"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/logger"
	"github.com/smukkama/water-quality-server/internal/scheduler"
	"github.com/smukkama/water-quality-server/pkg/config"
)

const (
	hourlyTaskID = "hourly-aggregation"
	dailyTaskID  = "daily-aggregation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "water-aggregator")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Aggregation Service...")

	db, err := database.Connect(cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New()
	sched.Start()

	hourly := aggregation.NewHourlyAggregator(db, logger)
	daily := aggregation.NewDailyAggregator(db, logger)

	// validate the daily time up front so a typo fails at startup
	if _, err := daily.NextRunTime(cfg.Aggregation.DailyTime); err != nil {
		logger.Fatal("Invalid daily aggregation time", zap.String("daily_time", cfg.Aggregation.DailyTime), zap.Error(err))
	}

	scheduleHourlyAggregation(ctx, sched, hourly, cfg.Aggregation.HourlyDelay, logger)
	scheduleDailyAggregation(ctx, sched, daily, cfg.Aggregation.DailyTime, logger)

	logger.Info("Aggregation Service is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
	cancel()
	sched.Stop()
}

func scheduleHourlyAggregation(ctx context.Context, sched *scheduler.Scheduler, agg *aggregation.HourlyAggregator, delay time.Duration, logger *zap.Logger) {
	var scheduleNext func()
	scheduleNext = func() {
		nextRun := agg.NextRunTime(delay)
		logger.Info("Next hourly aggregation scheduled", zap.Time("at", nextRun))

		err := sched.At(hourlyTaskID, nextRun, func() {
			if _, err := agg.AggregatePreviousHour(ctx); err != nil {
				logger.Error("Hourly aggregation failed", zap.Error(err))
			}
			scheduleNext()
		})
		if err != nil {
			logger.Debug("Hourly aggregation not rescheduled", zap.Error(err))
		}
	}

	scheduleNext()
}

func scheduleDailyAggregation(ctx context.Context, sched *scheduler.Scheduler, agg *aggregation.DailyAggregator, timeOfDay string, logger *zap.Logger) {
	var scheduleNext func()
	scheduleNext = func() {
		nextRun, err := agg.NextRunTime(timeOfDay)
		if err != nil {
			logger.Error("Failed to calculate daily run time", zap.Error(err))
			return
		}
		logger.Info("Next daily aggregation scheduled", zap.Time("at", nextRun))

		err = sched.At(dailyTaskID, nextRun, func() {
			if _, err := agg.AggregatePreviousDay(ctx); err != nil {
				logger.Error("Daily aggregation failed", zap.Error(err))
			}
			scheduleNext()
		})
		if err != nil {
			logger.Debug("Daily aggregation not rescheduled", zap.Error(err))
		}
	}

	scheduleNext()
}

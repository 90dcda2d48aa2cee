package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/cache"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/dispatch"
	"github.com/smukkama/water-quality-server/internal/logger"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/notification"
	"github.com/smukkama/water-quality-server/internal/queue"
	"github.com/smukkama/water-quality-server/pkg/config"
)

const consumerGroup = "evaluator-group"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "water-evaluator")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Evaluator Service...")

	db, err := database.Connect(cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the server reads through the same cache, so stale entries must be dropped here
	opts := []monitoring.Option{monitoring.WithSummaries(db)}
	if cfg.Redis.Addr != "" {
		latest, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer latest.Close()
		opts = append(opts, monitoring.WithCache(latest))
	}

	if cfg.Kafka.PublishAlerts {
		alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer alertProducer.Close()
		opts = append(opts, monitoring.WithAlertSink(notification.NewAlertPublisher(alertProducer)))
	}

	// evaluation only, so no dispatcher
	svc := monitoring.NewService(db, nil, logger, opts...)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvaluations, consumerGroup)
	defer consumer.Close()

	done := make(chan error, 1)
	go func() {
		done <- dispatch.ConsumeEvaluations(ctx, consumer, svc.EvaluateReading, logger)
	}()

	logger.Info("Evaluator Service is running",
		zap.String("topic", cfg.Kafka.TopicEvaluations),
		zap.String("group", consumerGroup))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Shutting down gracefully...")
	case err := <-done:
		logger.Error("Evaluation consumer stopped", zap.Error(err))
	}

	cancel()
	stats := consumer.Stats()
	logger.Info("Evaluator stopped", zap.Int64("messages", stats.Messages))
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/logger"
	"github.com/smukkama/water-quality-server/internal/notification"
	"github.com/smukkama/water-quality-server/internal/queue"
	"github.com/smukkama/water-quality-server/pkg/config"
)

const consumerGroup = "notification-group"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "water-notification")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Notification Service...")

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("SMTP unavailable, notifications will be logged only", zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, consumerGroup)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- notification.Relay(ctx, consumer, notifier, logger)
	}()

	logger.Info("Notification Service is running", zap.String("topic", cfg.Kafka.TopicAlerts))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Shutting down gracefully...")
	case err := <-done:
		logger.Error("Notification relay stopped", zap.Error(err))
	}
	cancel()
}

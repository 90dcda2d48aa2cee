package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/api"
	"github.com/smukkama/water-quality-server/internal/cache"
	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/dispatch"
	"github.com/smukkama/water-quality-server/internal/ingest"
	"github.com/smukkama/water-quality-server/internal/live"
	"github.com/smukkama/water-quality-server/internal/logger"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/notification"
	"github.com/smukkama/water-quality-server/internal/queue"
	"github.com/smukkama/water-quality-server/internal/scheduler"
	"github.com/smukkama/water-quality-server/internal/server"
	"github.com/smukkama/water-quality-server/internal/simulator"
	"github.com/smukkama/water-quality-server/internal/storage"
	"github.com/smukkama/water-quality-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "water-server")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Water Quality Server...",
		zap.String("store", cfg.Store.Backend),
		zap.String("evaluation_mode", cfg.Evaluation.Mode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []monitoring.Option

	// Store
	var store monitoring.Store
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.Connect(cfg.Database.ConnectionString(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(cfg.Store.MigrationsDir); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		store = db
		opts = append(opts, monitoring.WithSummaries(db))
	default:
		logger.Warn("Using in-memory store, data is lost on restart")
		store = storage.NewMemoryStore()
	}

	// Latest-state cache
	if cfg.Redis.Addr != "" {
		latest, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer latest.Close()
		opts = append(opts, monitoring.WithCache(latest))
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Live feed
	hub := live.NewHub(256, logger)
	go hub.Run(ctx)
	opts = append(opts, monitoring.WithReadingSink(hub), monitoring.WithAlertSink(hub))

	// Alert notifications
	if cfg.Kafka.PublishAlerts {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 1, 1); err != nil {
			logger.Warn("Topic creation failed", zap.String("topic", cfg.Kafka.TopicAlerts), zap.Error(err))
		}
		alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer alertProducer.Close()
		opts = append(opts, monitoring.WithAlertSink(notification.NewAlertPublisher(alertProducer)))
		logger.Info("Alert notifications enabled", zap.String("topic", cfg.Kafka.TopicAlerts))
	}

	opts = append(opts,
		monitoring.WithSampler(simulator.NewSampler(cfg.Simulator.Seed)),
		monitoring.WithDefaultLocation(cfg.Simulator.Location))

	// Evaluation dispatch
	var dispatcher monitoring.Dispatcher
	var pool *dispatch.WorkerPool
	switch cfg.Evaluation.Mode {
	case config.EvaluationKafka:
		if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicEvaluations, cfg.Kafka.NumPartitions, 1); err != nil {
			logger.Warn("Topic creation failed", zap.String("topic", cfg.Kafka.TopicEvaluations), zap.Error(err))
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvaluations)
		defer producer.Close()
		dispatcher = dispatch.NewKafkaDispatcher(producer)
		logger.Info("Evaluations are handed to the evaluator service", zap.String("topic", cfg.Kafka.TopicEvaluations))
	default:
		pool = dispatch.NewWorkerPool(cfg.Evaluation.Workers, cfg.Evaluation.QueueSize, logger)
		dispatcher = pool
	}

	svc := monitoring.NewService(store, dispatcher, logger, opts...)

	if pool != nil {
		pool.Start(ctx, svc.EvaluateReading)
		logger.Info("Evaluation worker pool started",
			zap.Int("workers", cfg.Evaluation.Workers),
			zap.Int("queue_size", cfg.Evaluation.QueueSize))
	}

	// Scheduler
	sched := scheduler.New()
	sched.Start()

	if cfg.Simulator.Interval > 0 {
		err := sched.Every("simulator", cfg.Simulator.Interval, func() {
			id, err := svc.SubmitSimulatedReading(ctx, cfg.Simulator.Location)
			if err != nil {
				logger.Error("Simulated reading failed", zap.Error(err))
				return
			}
			logger.Debug("Simulated reading submitted", zap.String("reading_id", id.String()))
		})
		if err != nil {
			logger.Fatal("Failed to schedule simulator", zap.Error(err))
		}
		logger.Info("Simulator enabled",
			zap.Duration("interval", cfg.Simulator.Interval),
			zap.String("location", cfg.Simulator.Location))
	}

	// Station ingest
	connManager := connection.NewManager(cfg.TCPServer.MaxConnections)
	var tcpServer *server.TCPServer
	if cfg.TCPServer.Port > 0 {
		tcpServer = server.NewTCPServer(&cfg.TCPServer, connManager, sched, svc, logger)
		if err := tcpServer.Start(); err != nil {
			logger.Fatal("Failed to start TCP server", zap.Error(err))
		}
	}

	var subscriber *ingest.Subscriber
	if cfg.MQTT.Broker != "" {
		subscriber, err = ingest.NewSubscriber(&cfg.MQTT, svc, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		if err := subscriber.Start(); err != nil {
			logger.Fatal("Failed to subscribe to MQTT readings", zap.Error(err))
		}
	}

	// HTTP API
	routes := api.NewRouteManager(svc, connManager, http.HandlerFunc(hub.ServeWS), cfg.HTTP.AllowedOrigins, logger)
	routes.Setup()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      routes.Router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sched.Every("stats", 30*time.Second, func() {
		stats := connManager.Stats()
		fields := []zap.Field{
			zap.Int("stations", stats.TotalConnections),
			zap.Int("max_stations", stats.MaxConnections),
			zap.Int("locations", stats.UniqueLocations),
			zap.Int("live_clients", hub.ClientCount()),
			zap.Int("scheduled_tasks", sched.Stats().Scheduled),
		}
		if pool != nil {
			fields = append(fields, zap.Int("pending_evaluations", pool.Pending()))
		}
		logger.Info("Server statistics", fields...)
	})

	logger.Info("Water Quality Server is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	if subscriber != nil {
		subscriber.Stop()
	}
	if tcpServer != nil {
		tcpServer.Stop()
	}
	sched.Stop()

	// drain queued evaluations before the store closes
	if pool != nil {
		pool.Stop()
	}
	cancel()

	logger.Info("Server stopped")
}

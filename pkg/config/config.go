package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Evaluation dispatch modes
const (
	EvaluationInline = "inline"
	EvaluationKafka  = "kafka"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Store       StoreConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	HTTP        HTTPConfig
	TCPServer   TCPServerConfig
	MQTT        MQTTConfig
	Evaluation  EvaluationConfig
	Simulator   SimulatorConfig
	Aggregation AggregationConfig
	SMTP        SMTPConfig
	Log         LogConfig
}

type StoreConfig struct {
	Backend       string
	MigrationsDir string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig configures the latest-state cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers          []string
	TopicEvaluations string
	TopicAlerts      string
	NumPartitions    int
	PublishAlerts    bool
}

type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string // "*" allows any origin
}

// TCPServerConfig configures station ingest. Port 0 disables it.
type TCPServerConfig struct {
	Port              int
	MaxConnections    int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
}

// MQTTConfig configures MQTT ingest. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

type EvaluationConfig struct {
	Mode      string
	Workers   int
	QueueSize int
}

// SimulatorConfig configures periodic synthetic readings. A zero Interval
// disables the job.
type SimulatorConfig struct {
	Interval time.Duration
	Location string
	Seed     int64
}

type AggregationConfig struct {
	HourlyDelay time.Duration
	DailyTime   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Store: StoreConfig{
			Backend:       getEnv("STORE_BACKEND", StorePostgres),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "water_user"),
			Password:     getEnv("DB_PASSWORD", "water_pass"),
			DBName:       getEnv("DB_NAME", "water_db"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicEvaluations: getEnv("KAFKA_TOPIC_EVALUATIONS", "water.evaluations"),
			TopicAlerts:      getEnv("KAFKA_TOPIC_ALERTS", "water.alerts"),
			NumPartitions:    getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
			PublishAlerts:    getEnvAsBool("KAFKA_PUBLISH_ALERTS", false),
		},
		HTTP: HTTPConfig{
			Port:            getEnvAsInt("HTTP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		},
		TCPServer: TCPServerConfig{
			Port:              getEnvAsInt("TCP_PORT", 9090),
			MaxConnections:    getEnvAsInt("TCP_MAX_CONNECTIONS", 1000),
			IdentifyTimeout:   getEnvAsDuration("TCP_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("TCP_INACTIVITY_TIMEOUT", 5*time.Minute),
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "water-quality-server"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
			Topic:    getEnv("MQTT_TOPIC", "water/+/readings"),
			QoS:      byte(getEnvAsInt("MQTT_QOS", 1)),
		},
		Evaluation: EvaluationConfig{
			Mode:      getEnv("EVALUATION_MODE", EvaluationInline),
			Workers:   getEnvAsInt("EVALUATION_WORKERS", 4),
			QueueSize: getEnvAsInt("EVALUATION_QUEUE_SIZE", 1000),
		},
		Simulator: SimulatorConfig{
			Interval: getEnvAsDuration("SIMULATOR_INTERVAL", 0),
			Location: getEnv("SIMULATOR_LOCATION", "Village Reservoir"),
			Seed:     int64(getEnvAsInt("SIMULATOR_SEED", 0)),
		},
		Aggregation: AggregationConfig{
			HourlyDelay: getEnvAsDuration("AGGREGATION_HOURLY_DELAY", 5*time.Minute),
			DailyTime:   getEnv("AGGREGATION_DAILY_TIME", "00:05"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "water-monitor@example.com"),
			To:       getEnv("SMTP_TO", "operator@example.com"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects option values no component understands
func (c *Config) Validate() error {
	switch c.Evaluation.Mode {
	case EvaluationInline, EvaluationKafka:
	default:
		return fmt.Errorf("invalid EVALUATION_MODE %q (expected %s or %s)",
			c.Evaluation.Mode, EvaluationInline, EvaluationKafka)
	}

	switch c.Store.Backend {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q (expected %s or %s)",
			c.Store.Backend, StorePostgres, StoreMemory)
	}

	if c.Evaluation.Workers <= 0 {
		return fmt.Errorf("EVALUATION_WORKERS must be positive, got %d", c.Evaluation.Workers)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	var items []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/pkg/config"
)

// ReadingSubmitter accepts readings from MQTT
type ReadingSubmitter interface {
	SubmitReading(ctx context.Context, in monitoring.ReadingInput) (uuid.UUID, error)
}

// Subscriber feeds readings published on an MQTT topic into the service
type Subscriber struct {
	client    mqtt.Client
	cfg       *config.MQTTConfig
	submitter ReadingSubmitter
	logger    *zap.Logger
}

// NewSubscriber connects to the broker. Call Start to subscribe.
func NewSubscriber(cfg *config.MQTTConfig, submitter ReadingSubmitter, logger *zap.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Subscriber{
		client:    client,
		cfg:       cfg,
		submitter: submitter,
		logger:    logger,
	}, nil
}

// Start subscribes to the configured topic
func (s *Subscriber) Start() error {
	token := s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handleMessage(msg.Topic(), msg.Payload()); err != nil {
			s.logger.Warn("Rejected MQTT reading",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Topic, token.Error())
	}

	s.logger.Info("Subscribed to MQTT readings", zap.String("topic", s.cfg.Topic))
	return nil
}

// Stop unsubscribes and disconnects
func (s *Subscriber) Stop() {
	if token := s.client.Unsubscribe(s.cfg.Topic); token.Wait() && token.Error() != nil {
		s.logger.Warn("Failed to unsubscribe", zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
}

func (s *Subscriber) handleMessage(topic string, payload []byte) error {
	var data protocol.ReadingData
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("invalid reading payload: %w", err)
	}
	if data.Location == "" {
		data.Location = locationFromTopic(s.cfg.Topic, topic)
	}

	in, err := monitoring.FromData(&data)
	if err != nil {
		return err
	}

	id, err := s.submitter.SubmitReading(context.Background(), in)
	if err != nil {
		return err
	}

	s.logger.Debug("MQTT reading accepted",
		zap.String("topic", topic),
		zap.String("reading_id", id.String()))
	return nil
}

// locationFromTopic returns the topic level matched by the first single-level
// wildcard in pattern, e.g. "well-3" for pattern "water/+/readings" and
// topic "water/well-3/readings"
func locationFromTopic(pattern, topic string) string {
	patternLevels := strings.Split(pattern, "/")
	topicLevels := strings.Split(topic, "/")

	for i, level := range patternLevels {
		if level == "+" && i < len(topicLevels) {
			return topicLevels[i]
		}
	}
	return ""
}

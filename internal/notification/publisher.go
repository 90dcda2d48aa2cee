package notification

import (
	"context"
	"fmt"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/protocol"
)

// Publisher is satisfied by queue.Producer
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// AlertPublisher forwards persisted alerts to the alerts topic
type AlertPublisher struct {
	publisher Publisher
}

func NewAlertPublisher(publisher Publisher) *AlertPublisher {
	return &AlertPublisher{publisher: publisher}
}

// PublishAlert publishes an AlertNotification keyed by location
func (p *AlertPublisher) PublishAlert(ctx context.Context, a *database.Alert, location string) error {
	data, err := protocol.EncodeAlertNotification(protocol.NewAlertNotification(a, location))
	if err != nil {
		return fmt.Errorf("failed to encode alert notification: %w", err)
	}

	if err := p.publisher.Publish(ctx, location, data); err != nil {
		return fmt.Errorf("failed to publish alert notification: %w", err)
	}
	return nil
}

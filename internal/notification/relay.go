package notification

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/protocol"
)

// MessageSource is satisfied by queue.Consumer
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Sender delivers one alert notification
type Sender interface {
	SendAlertNotification(n *protocol.AlertNotification) error
}

// Relay consumes alert notifications and hands them to sender until ctx is
// done. A failed send leaves the offset uncommitted.
func Relay(ctx context.Context, source MessageSource, sender Sender, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		msg, err := source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("Failed to consume alert notification", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		n, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			logger.Warn("Dropping malformed alert notification",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		} else if err := sender.SendAlertNotification(n); err != nil {
			logger.Error("Failed to send notification",
				zap.String("alert_id", n.AlertID.String()),
				zap.Error(err))
			continue
		}

		if err := source.Commit(ctx, msg); err != nil {
			logger.Error("Failed to commit offset", zap.Error(err))
		}
	}
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/protocol"
)

// Publisher is satisfied by queue.Producer
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// MessageSource is satisfied by queue.Consumer
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// KafkaDispatcher hands evaluations to a separate evaluator process
type KafkaDispatcher struct {
	publisher Publisher
}

func NewKafkaDispatcher(publisher Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher}
}

// Dispatch publishes an evaluation request keyed by location
func (d *KafkaDispatcher) Dispatch(ctx context.Context, r *database.Reading) error {
	data, err := protocol.EncodeEvaluationRequest(&protocol.EvaluationRequest{
		ReadingID:   r.ID,
		Location:    r.Location,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode evaluation request: %w", err)
	}

	if err := d.publisher.Publish(ctx, r.Location, data); err != nil {
		return fmt.Errorf("failed to publish evaluation request: %w", err)
	}
	return nil
}

// ConsumeEvaluations feeds evaluation requests to handler until ctx is done.
// Offsets are committed after handling whether or not it succeeded, so a
// failed evaluation is logged and not retried.
func ConsumeEvaluations(ctx context.Context, source MessageSource, handler Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		msg, err := source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Error("Failed to consume evaluation request", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		req, err := protocol.DecodeEvaluationRequest(msg.Value)
		if err != nil {
			logger.Warn("Dropping malformed evaluation request",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		} else if err := handler(ctx, req.ReadingID); err != nil {
			logger.Error("Evaluation failed",
				zap.String("reading_id", req.ReadingID.String()),
				zap.String("location", req.Location),
				zap.Error(err))
		}

		if err := source.Commit(ctx, msg); err != nil {
			logger.Error("Failed to commit offset",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

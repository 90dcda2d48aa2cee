package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/water-quality-server/internal/database"
)

// Store persists readings, predictions and alerts. database.DB and
// storage.MemoryStore both satisfy it. Getters return nil, nil when the
// record does not exist.
type Store interface {
	InsertReading(ctx context.Context, r *database.Reading) error
	GetReading(ctx context.Context, id uuid.UUID) (*database.Reading, error)
	GetLatestReading(ctx context.Context) (*database.Reading, error)
	GetReadingsSince(ctx context.Context, since time.Time, limit int) ([]*database.Reading, error)

	InsertPrediction(ctx context.Context, p *database.DiseaseRiskPrediction) error
	GetLatestPrediction(ctx context.Context) (*database.DiseaseRiskPrediction, error)

	InsertAlert(ctx context.Context, a *database.Alert) error
	ListUnacknowledgedAlerts(ctx context.Context, offset, limit int) ([]*database.Alert, int, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Dispatcher schedules evaluation of a persisted reading
type Dispatcher interface {
	Dispatch(ctx context.Context, r *database.Reading) error
}

// Cache holds the latest reading and prediction in front of the store.
// Sets must keep whichever entry has the newer timestamp.
type Cache interface {
	GetLatestReading(ctx context.Context) (*database.Reading, error)
	SetLatestReading(ctx context.Context, r *database.Reading) error
	GetLatestPrediction(ctx context.Context) (*database.DiseaseRiskPrediction, error)
	SetLatestPrediction(ctx context.Context, p *database.DiseaseRiskPrediction) error
}

// AlertSink receives every persisted alert
type AlertSink interface {
	PublishAlert(ctx context.Context, a *database.Alert, location string) error
}

// ReadingSink receives every persisted reading
type ReadingSink interface {
	PublishReading(ctx context.Context, r *database.Reading) error
}

// SummarySource serves the hourly and daily rollups
type SummarySource interface {
	GetHourlySummaries(ctx context.Context, since time.Time) ([]*database.HourlySummary, error)
	GetDailySummaries(ctx context.Context, since time.Time) ([]*database.DailySummary, error)
}

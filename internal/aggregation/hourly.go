package aggregation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
)

const hourlyQuery = `
	INSERT INTO hourly_summaries (
		location, hour_timestamp, avg_ph, avg_turbidity, avg_temperature,
		avg_dissolved_oxygen, avg_total_coliform, avg_ecoli, avg_chlorine,
		sample_count, alert_count
	)
	SELECT
		r.location,
		$1 AS hour_timestamp,
		AVG(r.ph),
		AVG(r.turbidity),
		AVG(r.temperature),
		AVG(r.dissolved_oxygen),
		AVG(r.total_coliform),
		AVG(r.ecoli),
		AVG(r.chlorine),
		COUNT(*) AS sample_count,
		(
			SELECT COUNT(*)
			FROM alerts a
			JOIN readings ar ON ar.id = a.reading_id
			WHERE ar.location = r.location
			  AND a.timestamp >= $1 AND a.timestamp < $2
		) AS alert_count
	FROM
		readings r
	WHERE
		r.timestamp >= $1 AND r.timestamp < $2
	GROUP BY
		r.location
	ON CONFLICT (location, hour_timestamp) DO UPDATE
	SET
		avg_ph = EXCLUDED.avg_ph,
		avg_turbidity = EXCLUDED.avg_turbidity,
		avg_temperature = EXCLUDED.avg_temperature,
		avg_dissolved_oxygen = EXCLUDED.avg_dissolved_oxygen,
		avg_total_coliform = EXCLUDED.avg_total_coliform,
		avg_ecoli = EXCLUDED.avg_ecoli,
		avg_chlorine = EXCLUDED.avg_chlorine,
		sample_count = EXCLUDED.sample_count,
		alert_count = EXCLUDED.alert_count
`

// HourlyAggregator rolls readings up into per-location hourly averages
type HourlyAggregator struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewHourlyAggregator creates a new hourly aggregator
func NewHourlyAggregator(db *database.DB, logger *zap.Logger) *HourlyAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HourlyAggregator{db: db, logger: logger, now: time.Now}
}

// Aggregate summarizes the hour containing targetHour. Re-running an hour
// overwrites its summary.
func (h *HourlyAggregator) Aggregate(ctx context.Context, targetHour time.Time) (int64, error) {
	startTime := targetHour.UTC().Truncate(time.Hour)
	endTime := startTime.Add(time.Hour)

	result, err := h.db.ExecContext(ctx, hourlyQuery, startTime, endTime)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate hourly data: %w", err)
	}

	rows, _ := result.RowsAffected()
	h.logger.Info("Hourly aggregation completed",
		zap.Time("hour", startTime),
		zap.Int64("locations", rows))
	return rows, nil
}

// AggregatePreviousHour summarizes the last full hour
func (h *HourlyAggregator) AggregatePreviousHour(ctx context.Context) (int64, error) {
	return h.Aggregate(ctx, h.now().Add(-time.Hour))
}

// NextRunTime returns the next run at delay past the hour, e.g. HH:05 for
// a five minute delay
func (h *HourlyAggregator) NextRunTime(delay time.Duration) time.Time {
	now := h.now()
	nextRun := now.Truncate(time.Hour).Add(delay)
	if !nextRun.After(now) {
		nextRun = nextRun.Add(time.Hour)
	}
	return nextRun
}

package aggregation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
)

const dailyQuery = `
	INSERT INTO daily_summaries (
		location, date,
		min_ph, max_ph,
		max_turbidity,
		min_temperature, max_temperature,
		min_dissolved_oxygen,
		max_total_coliform, max_ecoli,
		min_chlorine, max_chlorine,
		sample_count, critical_alerts
	)
	SELECT
		r.location,
		$1::date AS date,
		MIN(r.ph), MAX(r.ph),
		MAX(r.turbidity),
		MIN(r.temperature), MAX(r.temperature),
		MIN(r.dissolved_oxygen),
		MAX(r.total_coliform), MAX(r.ecoli),
		MIN(r.chlorine), MAX(r.chlorine),
		COUNT(*) AS sample_count,
		(
			SELECT COUNT(*)
			FROM alerts a
			JOIN readings ar ON ar.id = a.reading_id
			WHERE ar.location = r.location
			  AND a.severity = 'critical'
			  AND a.timestamp >= $1 AND a.timestamp < $2
		) AS critical_alerts
	FROM
		readings r
	WHERE
		r.timestamp >= $1 AND r.timestamp < $2
	GROUP BY
		r.location
	ON CONFLICT (location, date) DO UPDATE
	SET
		min_ph = EXCLUDED.min_ph,
		max_ph = EXCLUDED.max_ph,
		max_turbidity = EXCLUDED.max_turbidity,
		min_temperature = EXCLUDED.min_temperature,
		max_temperature = EXCLUDED.max_temperature,
		min_dissolved_oxygen = EXCLUDED.min_dissolved_oxygen,
		max_total_coliform = EXCLUDED.max_total_coliform,
		max_ecoli = EXCLUDED.max_ecoli,
		min_chlorine = EXCLUDED.min_chlorine,
		max_chlorine = EXCLUDED.max_chlorine,
		sample_count = EXCLUDED.sample_count,
		critical_alerts = EXCLUDED.critical_alerts
`

// DailyAggregator rolls readings up into per-location daily extremes
type DailyAggregator struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDailyAggregator creates a new daily aggregator
func NewDailyAggregator(db *database.DB, logger *zap.Logger) *DailyAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyAggregator{db: db, logger: logger, now: time.Now}
}

// Aggregate summarizes the UTC day containing targetDate
func (d *DailyAggregator) Aggregate(ctx context.Context, targetDate time.Time) (int64, error) {
	t := targetDate.UTC()
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	result, err := d.db.ExecContext(ctx, dailyQuery, date, date.AddDate(0, 0, 1))
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate daily data: %w", err)
	}

	rows, _ := result.RowsAffected()
	d.logger.Info("Daily aggregation completed",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int64("locations", rows))
	return rows, nil
}

// AggregatePreviousDay summarizes yesterday
func (d *DailyAggregator) AggregatePreviousDay(ctx context.Context) (int64, error) {
	return d.Aggregate(ctx, d.now().UTC().AddDate(0, 0, -1))
}

// NextRunTime returns the next occurrence of timeOfDay ("HH:MM", local time)
func (d *DailyAggregator) NextRunTime(timeOfDay string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}

	now := d.now()
	todayRun := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !todayRun.After(now) {
		return todayRun.AddDate(0, 0, 1), nil
	}
	return todayRun, nil
}

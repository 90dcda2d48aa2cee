package database

import (
	"context"
	"fmt"
	"time"
)

// GetHourlySummaries returns hourly rollups at or after since, newest first
func (db *DB) GetHourlySummaries(ctx context.Context, since time.Time) ([]*HourlySummary, error) {
	query := `
		SELECT location, hour_timestamp, avg_ph, avg_turbidity, avg_temperature,
		       avg_dissolved_oxygen, avg_total_coliform, avg_ecoli, avg_chlorine,
		       sample_count, alert_count
		FROM hourly_summaries
		WHERE hour_timestamp >= $1
		ORDER BY hour_timestamp DESC, location
	`

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*HourlySummary, 0)
	for rows.Next() {
		var s HourlySummary
		if err := rows.Scan(
			&s.Location,
			&s.HourTimestamp,
			&s.AvgPH,
			&s.AvgTurbidity,
			&s.AvgTemperature,
			&s.AvgDissolvedOxygen,
			&s.AvgTotalColiform,
			&s.AvgEColi,
			&s.AvgChlorine,
			&s.SampleCount,
			&s.AlertCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hourly summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

// GetDailySummaries returns daily rollups at or after since, newest first
func (db *DB) GetDailySummaries(ctx context.Context, since time.Time) ([]*DailySummary, error) {
	query := `
		SELECT location, date, min_ph, max_ph, max_turbidity,
		       min_temperature, max_temperature, min_dissolved_oxygen,
		       max_total_coliform, max_ecoli, min_chlorine, max_chlorine,
		       sample_count, critical_alerts
		FROM daily_summaries
		WHERE date >= $1::date
		ORDER BY date DESC, location
	`

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*DailySummary, 0)
	for rows.Next() {
		var s DailySummary
		if err := rows.Scan(
			&s.Location,
			&s.Date,
			&s.MinPH,
			&s.MaxPH,
			&s.MaxTurbidity,
			&s.MinTemperature,
			&s.MaxTemperature,
			&s.MinDissolvedOxygen,
			&s.MaxTotalColiform,
			&s.MaxEColi,
			&s.MinChlorine,
			&s.MaxChlorine,
			&s.SampleCount,
			&s.CriticalAlerts,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		summaries = append(summaries, &s)
	}

	return summaries, rows.Err()
}

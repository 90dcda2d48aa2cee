package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// Connect establishes a connection to the database
func Connect(connectionString string, maxOpenConns, maxIdleConns int, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	return New(db, logger), nil
}

// New wraps an already opened *sql.DB
func New(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		db.logger.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	db.logger.Info("All migrations completed", zap.Int("count", len(sqlFiles)))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const readingColumns = `id, timestamp, location, ph, turbidity, temperature,
		dissolved_oxygen, total_coliform, ecoli, chlorine`

func scanReading(row rowScanner) (*Reading, error) {
	var r Reading
	if err := row.Scan(
		&r.ID,
		&r.Timestamp,
		&r.Location,
		&r.PH,
		&r.Turbidity,
		&r.Temperature,
		&r.DissolvedOxygen,
		&r.TotalColiform,
		&r.EColi,
		&r.Chlorine,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertReading inserts a new reading
func (db *DB) InsertReading(ctx context.Context, r *Reading) error {
	query := `
		INSERT INTO readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.Timestamp,
		r.Location,
		r.PH,
		r.Turbidity,
		r.Temperature,
		r.DissolvedOxygen,
		r.TotalColiform,
		r.EColi,
		r.Chlorine,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// GetReading retrieves a reading by id. It returns nil, nil when absent.
func (db *DB) GetReading(ctx context.Context, id uuid.UUID) (*Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings WHERE id = $1`

	r, err := scanReading(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return r, nil
}

// GetLatestReading retrieves the most recent reading
func (db *DB) GetLatestReading(ctx context.Context) (*Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM readings ORDER BY timestamp DESC LIMIT 1`

	r, err := scanReading(db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return r, nil
}

// GetReadingsSince returns readings at or after since, newest first
func (db *DB) GetReadingsSince(ctx context.Context, since time.Time, limit int) ([]*Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM readings
		WHERE timestamp >= $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]*Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

const predictionColumns = `id, reading_id, timestamp,
		cholera_level, cholera_probability, cholera_confidence,
		typhoid_level, typhoid_probability, typhoid_confidence,
		hepatitis_a_level, hepatitis_a_probability, hepatitis_a_confidence,
		diarrhea_level, diarrhea_probability, diarrhea_confidence,
		overall_risk`

// InsertPrediction inserts a disease risk prediction
func (db *DB) InsertPrediction(ctx context.Context, p *DiseaseRiskPrediction) error {
	query := `
		INSERT INTO disease_risk_predictions (` + predictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := db.ExecContext(ctx, query,
		p.ID, p.ReadingID, p.Timestamp,
		p.Cholera.RiskLevel, p.Cholera.Probability, p.Cholera.Confidence,
		p.Typhoid.RiskLevel, p.Typhoid.Probability, p.Typhoid.Confidence,
		p.HepatitisA.RiskLevel, p.HepatitisA.Probability, p.HepatitisA.Confidence,
		p.Diarrhea.RiskLevel, p.Diarrhea.Probability, p.Diarrhea.Confidence,
		p.OverallRisk,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// GetLatestPrediction retrieves the most recent disease risk prediction
func (db *DB) GetLatestPrediction(ctx context.Context) (*DiseaseRiskPrediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM disease_risk_predictions
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var p DiseaseRiskPrediction
	err := db.QueryRowContext(ctx, query).Scan(
		&p.ID, &p.ReadingID, &p.Timestamp,
		&p.Cholera.RiskLevel, &p.Cholera.Probability, &p.Cholera.Confidence,
		&p.Typhoid.RiskLevel, &p.Typhoid.Probability, &p.Typhoid.Confidence,
		&p.HepatitisA.RiskLevel, &p.HepatitisA.Probability, &p.HepatitisA.Confidence,
		&p.Diarrhea.RiskLevel, &p.Diarrhea.Probability, &p.Diarrhea.Confidence,
		&p.OverallRisk,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prediction: %w", err)
	}
	return &p, nil
}

const alertColumns = `id, reading_id, timestamp, type, severity, message,
		parameter, value, threshold, acknowledged, acknowledged_at`

// InsertAlert inserts a new alert
func (db *DB) InsertAlert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.ReadingID,
		a.Timestamp,
		a.Type,
		a.Severity,
		a.Message,
		a.Parameter,
		a.Value,
		a.Threshold,
		a.Acknowledged,
		a.AcknowledgedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListUnacknowledgedAlerts returns one page of unacknowledged alerts, newest
// first, along with the total number of unacknowledged alerts. Alerts sharing
// a timestamp come latest inserted first.
func (db *DB) ListUnacknowledgedAlerts(ctx context.Context, offset, limit int) ([]*Alert, int, error) {
	var total int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE acknowledged = false`,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE acknowledged = false
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*Alert, 0)
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.ID,
			&a.ReadingID,
			&a.Timestamp,
			&a.Type,
			&a.Severity,
			&a.Message,
			&a.Parameter,
			&a.Value,
			&a.Threshold,
			&a.Acknowledged,
			&a.AcknowledgedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}

	return alerts, total, rows.Err()
}

// AcknowledgeAlert marks an alert as acknowledged. Acknowledging twice keeps
// the first acknowledgement time.
func (db *DB) AcknowledgeAlert(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE alerts
		SET acknowledged = true,
		    acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = $1
	`

	result, err := db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

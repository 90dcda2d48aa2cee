package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *DB) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return mock, New(sqlDB, zap.NewNop())
}

var readingRowColumns = []string{
	"id", "timestamp", "location", "ph", "turbidity", "temperature",
	"dissolved_oxygen", "total_coliform", "ecoli", "chlorine",
}

func TestInsertReading(t *testing.T) {
	mock, db := setupMockDB(t)

	r := &Reading{
		ID:        uuid.New(),
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Location:  "Village Reservoir",
		PH:        7.1,
		Turbidity: 3,
		Chlorine:  1.2,
	}

	mock.ExpectExec(`INSERT INTO readings`).
		WithArgs(r.ID, r.Timestamp, r.Location, r.PH, r.Turbidity, r.Temperature,
			r.DissolvedOxygen, r.TotalColiform, r.EColi, r.Chlorine).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.InsertReading(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReading_NotFound(t *testing.T) {
	mock, db := setupMockDB(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM readings WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	r, err := db.GetReading(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, r)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestReading(t *testing.T) {
	mock, db := setupMockDB(t)
	id := uuid.New()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(readingRowColumns).
		AddRow(id.String(), ts, "Well 3", 6.9, 4.5, 24.0, 7.5, 0.0, 0.0, 1.1)
	mock.ExpectQuery(`SELECT (.+) FROM readings ORDER BY timestamp DESC LIMIT 1`).
		WillReturnRows(rows)

	r, err := db.GetLatestReading(context.Background())
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "Well 3", r.Location)
	assert.Equal(t, 6.9, r.PH)
	assert.Equal(t, 1.1, r.Chlorine)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestPrediction_Empty(t *testing.T) {
	mock, db := setupMockDB(t)

	mock.ExpectQuery(`FROM disease_risk_predictions`).WillReturnError(sql.ErrNoRows)

	p, err := db.GetLatestPrediction(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestInsertAlert_NullableColumns(t *testing.T) {
	mock, db := setupMockDB(t)

	a := &Alert{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Type:      AlertTypeDiseaseRisk,
		Severity:  SeverityCritical,
		Message:   "outbreak",
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs(a.ID, nil, a.Timestamp, "disease_risk", "critical", "outbreak",
			nil, nil, nil, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.InsertAlert(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnacknowledgedAlerts(t *testing.T) {
	mock, db := setupMockDB(t)
	id := uuid.New()
	readingID := uuid.New()
	ts := time.Now().UTC()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts WHERE acknowledged = false`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	rows := sqlmock.NewRows([]string{
		"id", "reading_id", "timestamp", "type", "severity", "message",
		"parameter", "value", "threshold", "acknowledged", "acknowledged_at",
	}).AddRow(id.String(), readingID.String(), ts, "water_quality", "warning",
		"Turbidity level 9.00 NTU exceeds safe limit (5 NTU)", "turbidity", 9.0, 5.0, false, nil)

	mock.ExpectQuery(`ORDER BY timestamp DESC, seq DESC`).
		WithArgs(5, 5).
		WillReturnRows(rows)

	alerts, total, err := db.ListUnacknowledgedAlerts(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, id, a.ID)
	require.NotNil(t, a.ReadingID)
	assert.Equal(t, readingID, *a.ReadingID)
	assert.Equal(t, AlertTypeWaterQuality, a.Type)
	require.NotNil(t, a.Parameter)
	assert.Equal(t, ParamTurbidity, *a.Parameter)
	assert.Nil(t, a.AcknowledgedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert(t *testing.T) {
	mock, db := setupMockDB(t)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.AcknowledgeAlert(context.Background(), id, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_NotFound(t *testing.T) {
	mock, db := setupMockDB(t)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.AcknowledgeAlert(context.Background(), id, at)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAcknowledgeAlert_DatabaseError(t *testing.T) {
	mock, db := setupMockDB(t)

	mock.ExpectExec(`UPDATE alerts`).WillReturnError(errors.New("connection reset"))

	err := db.AcknowledgeAlert(context.Background(), uuid.New(), time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "failed to acknowledge alert")
}

func TestRunMigrations_AlertOrderingColumn(t *testing.T) {
	mock, db := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS readings`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS hourly_summaries`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE alerts ADD COLUMN IF NOT EXISTS seq BIGSERIAL`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.RunMigrations("../../migrations"))
	require.NoError(t, mock.ExpectationsWereMet())
}

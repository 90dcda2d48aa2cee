package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/api"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/internal/quality"
	"github.com/smukkama/water-quality-server/internal/storage"
)

type syncDispatcher struct {
	svc *monitoring.Service
}

func (d *syncDispatcher) Dispatch(ctx context.Context, r *database.Reading) error {
	return d.svc.EvaluateReading(ctx, r.ID)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	dispatcher := &syncDispatcher{}
	svc := monitoring.NewService(storage.NewMemoryStore(), dispatcher, zap.NewNop())
	dispatcher.svc = svc

	rm := api.NewRouteManager(svc, nil, nil, []string{"*"}, zap.NewNop())
	rm.Setup()

	srv := httptest.NewServer(rm.Router)
	t.Cleanup(srv.Close)

	return New(srv.URL, 5*time.Second)
}

func ptr(v float64) *float64 { return &v }

func TestClient_SubmitAndQuery(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.LatestWaterQuality(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	id, err := c.SubmitReading(ctx, &protocol.ReadingData{
		Location:        "Well 3",
		PH:              ptr(7.0),
		Turbidity:       ptr(1.0),
		Temperature:     ptr(20),
		DissolvedOxygen: ptr(8),
		TotalColiform:   ptr(5),
		EColi:           ptr(0),
		Chlorine:        ptr(1),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	latest, err := c.LatestWaterQuality(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, quality.StatusCritical, latest.OverallStatus)

	prediction, err := c.LatestDiseaseRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, prediction.ReadingID)

	readings, err := c.RecentReadings(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, readings, 1)

	page, err := c.ActiveAlerts(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Alerts, 1)
	assert.Equal(t, database.SeverityCritical, page.Alerts[0].Severity)

	require.NoError(t, c.AcknowledgeAlert(ctx, page.Alerts[0].ID))
	page, err = c.ActiveAlerts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Alerts)
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.SubmitReading(ctx, &protocol.ReadingData{PH: ptr(7)})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "missing")

	err = c.AcknowledgeAlert(ctx, uuid.New())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_SimulateAndStations(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	id, err := c.Simulate(ctx, "North Tank")
	require.NoError(t, err)

	latest, err := c.LatestWaterQuality(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, "North Tank", latest.Location)

	stations, err := c.Stations(ctx)
	require.NoError(t, err)
	assert.Empty(t, stations)
}

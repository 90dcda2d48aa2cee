package monitoring

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
	"github.com/smukkama/water-quality-server/internal/storage"
)

func seedAlerts(t *testing.T, store *storage.MemoryStore, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, store.InsertAlert(context.Background(), &database.Alert{
			ID:        ids[i],
			Timestamp: fixedNow.Add(time.Duration(i) * time.Minute),
			Type:      database.AlertTypeWaterQuality,
			Severity:  database.SeverityWarning,
			Message:   "test",
		}))
	}
	return ids
}

func TestActiveAlerts_SecondPage(t *testing.T) {
	store := storage.NewMemoryStore()
	ids := seedAlerts(t, store, 7)
	svc := newTestService(store, nil)

	page, err := svc.ActiveAlerts(context.Background(), 2, 5)
	require.NoError(t, err)

	require.Len(t, page.Alerts, 2)
	assert.Equal(t, ids[1], page.Alerts[0].ID)
	assert.Equal(t, ids[0], page.Alerts[1].ID)
	assert.Equal(t, Pagination{
		Page:       2,
		PageSize:   5,
		TotalCount: 7,
		TotalPages: 2,
		HasNext:    false,
		HasPrev:    true,
	}, page.Pagination)
}

func TestActiveAlerts_FirstPageNewestFirst(t *testing.T) {
	store := storage.NewMemoryStore()
	ids := seedAlerts(t, store, 7)
	svc := newTestService(store, nil)

	page, err := svc.ActiveAlerts(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, page.Alerts, 5)
	assert.Equal(t, ids[6], page.Alerts[0].ID)
	assert.True(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
}

func TestActiveAlerts_PastTheEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAlerts(t, store, 7)
	svc := newTestService(store, nil)

	page, err := svc.ActiveAlerts(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.NotNil(t, page.Alerts)
	assert.Empty(t, page.Alerts)
	assert.Equal(t, 7, page.Pagination.TotalCount)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
}

func TestActiveAlerts_NormalizesArguments(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAlerts(t, store, 3)
	svc := newTestService(store, nil)

	page, err := svc.ActiveAlerts(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 10, page.Pagination.PageSize)
	assert.Len(t, page.Alerts, 3)

	page, err = svc.ActiveAlerts(context.Background(), -3, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 5000, page.Pagination.PageSize, "page size is not capped")
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.Len(t, page.Alerts, 3)
}

func TestActiveAlerts_HugePageIsEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	seedAlerts(t, store, 7)
	svc := newTestService(store, nil)
	ctx := context.Background()

	page, err := svc.ActiveAlerts(ctx, math.MaxInt/100+2, 100)
	require.NoError(t, err)
	assert.Empty(t, page.Alerts)
	assert.Equal(t, 7, page.Pagination.TotalCount)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)

	page, err = svc.ActiveAlerts(ctx, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, page.Alerts)

	page, err = svc.ActiveAlerts(ctx, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page.Alerts, 7)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, pageOffset(1, 10))
	assert.Equal(t, 10, pageOffset(2, 10))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt/100+2, 100))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt, 2))
}

func TestActiveAlerts_ExcludesAcknowledged(t *testing.T) {
	store := storage.NewMemoryStore()
	ids := seedAlerts(t, store, 4)
	svc := newTestService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.AcknowledgeAlert(ctx, ids[3]))

	page, err := svc.ActiveAlerts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.TotalCount)
	for _, a := range page.Alerts {
		assert.NotEqual(t, ids[3], a.ID)
	}
}

func TestActiveAlerts_Empty(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore(), nil)

	page, err := svc.ActiveAlerts(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Alerts)
	assert.Equal(t, Pagination{Page: 1, PageSize: 10}, page.Pagination)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(3, 10, 30)
	assert.Equal(t, 3, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 10, 31)
	assert.Equal(t, 4, p.TotalPages)
	assert.True(t, p.HasNext)

	p = NewPagination(1, math.MaxInt, 7)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasNext)
}

func TestLatestReadingWithStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	latest, err := svc.LatestReadingWithStatus(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	in := safeInput()
	in.Turbidity = 6
	_, err = svc.SubmitReading(ctx, in)
	require.NoError(t, err)

	latest, err = svc.LatestReadingWithStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 6.0, latest.Turbidity)
	assert.Equal(t, quality.StatusWarning, latest.Status[database.ParamTurbidity])
	assert.Equal(t, quality.StatusGood, latest.Status[database.ParamPH])
	assert.Equal(t, quality.StatusWarning, latest.OverallStatus)
}

func TestRecentReadings(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	for _, age := range []time.Duration{time.Hour, 5 * time.Hour, 30 * time.Hour} {
		require.NoError(t, store.InsertReading(ctx, &database.Reading{
			ID:        uuid.New(),
			Timestamp: fixedNow.Add(-age),
		}))
	}

	readings, err := svc.RecentReadings(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, readings, 2, "defaults to the last 24 hours")
	assert.True(t, readings[0].Timestamp.After(readings[1].Timestamp))

	readings, err = svc.RecentReadings(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, readings, 1)

	readings, err = svc.RecentReadings(ctx, 48)
	require.NoError(t, err)
	assert.Len(t, readings, 3)
}

func TestRecentReadings_CappedAtOneHundred(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		require.NoError(t, store.InsertReading(ctx, &database.Reading{
			ID:        uuid.New(),
			Timestamp: fixedNow.Add(-time.Duration(i) * time.Minute),
		}))
	}

	readings, err := svc.RecentReadings(ctx, 24)
	require.NoError(t, err)
	assert.Len(t, readings, 100)
	assert.Equal(t, fixedNow, readings[0].Timestamp)
}

// fakeCache keeps the newer entry on set, like the Redis cache
type fakeCache struct {
	reading     *database.Reading
	prediction  *database.DiseaseRiskPrediction
	err         error
	readingSets int
	predSets    int
}

func (c *fakeCache) GetLatestReading(context.Context) (*database.Reading, error) {
	return c.reading, c.err
}

func (c *fakeCache) SetLatestReading(_ context.Context, r *database.Reading) error {
	c.readingSets++
	if c.reading == nil || !c.reading.Timestamp.After(r.Timestamp) {
		c.reading = r
	}
	return nil
}

func (c *fakeCache) GetLatestPrediction(context.Context) (*database.DiseaseRiskPrediction, error) {
	return c.prediction, c.err
}

func (c *fakeCache) SetLatestPrediction(_ context.Context, p *database.DiseaseRiskPrediction) error {
	c.predSets++
	if c.prediction == nil || !c.prediction.Timestamp.After(p.Timestamp) {
		c.prediction = p
	}
	return nil
}

func TestLatestReading_WriteThroughCache(t *testing.T) {
	store := storage.NewMemoryStore()
	cache := &fakeCache{}
	svc := newTestService(store, nil, WithCache(cache))
	ctx := context.Background()

	id, err := svc.SubmitReading(ctx, safeInput())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.readingSets)
	require.NotNil(t, cache.reading)
	assert.Equal(t, id, cache.reading.ID)

	latest, err := svc.LatestReadingWithStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, 1, cache.readingSets, "read is served from the cache")

	require.NoError(t, svc.EvaluateReading(ctx, id))
	assert.Equal(t, 1, cache.predSets)

	p, err := svc.LatestDiseaseRisk(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, id, p.ReadingID)
	assert.Same(t, p, cache.prediction)
}

func TestLatestReading_StaleFillLosesToNewerWrite(t *testing.T) {
	store := storage.NewMemoryStore()
	clock := fixedNow
	svc := newTestService(store, nil, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	_, err := svc.SubmitReading(ctx, safeInput())
	require.NoError(t, err)
	stale, err := store.GetLatestReading(ctx)
	require.NoError(t, err)

	// the cache is attached after the first write so the read below misses
	cache := &fakeCache{}
	svc.cache = cache

	clock = fixedNow.Add(time.Second)
	newID, err := svc.SubmitReading(ctx, safeInput())
	require.NoError(t, err)

	// a reader that loaded the first reading fills the cache late
	require.NoError(t, cache.SetLatestReading(ctx, stale))

	latest, err := svc.LatestReadingWithStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, newID, latest.ID)
}

func TestLatestReading_CacheErrorsFallThrough(t *testing.T) {
	store := storage.NewMemoryStore()
	cache := &fakeCache{err: errors.New("redis down")}
	svc := newTestService(store, nil, WithCache(cache))
	ctx := context.Background()

	id, err := svc.SubmitReading(ctx, safeInput())
	require.NoError(t, err)

	latest, err := svc.LatestReadingWithStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
}

func TestLatestDiseaseRisk_None(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore(), nil)

	p, err := svc.LatestDiseaseRisk(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

type fakeSummaries struct {
	since time.Time
}

func (f *fakeSummaries) GetHourlySummaries(_ context.Context, since time.Time) ([]*database.HourlySummary, error) {
	f.since = since
	return []*database.HourlySummary{{Location: "Well 3", SampleCount: 12}}, nil
}

func (f *fakeSummaries) GetDailySummaries(_ context.Context, since time.Time) ([]*database.DailySummary, error) {
	f.since = since
	return nil, nil
}

func TestSummaries(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore(), nil)
	_, err := svc.HourlySummaries(context.Background(), 24)
	assert.ErrorIs(t, err, ErrSummariesUnavailable)

	src := &fakeSummaries{}
	svc = newTestService(storage.NewMemoryStore(), nil, WithSummaries(src))

	hourly, err := svc.HourlySummaries(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, fixedNow.Add(-6*time.Hour), src.since)

	_, err = svc.DailySummaries(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7), src.since)
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/water-quality-server/internal/database"
)

// MemoryStore keeps readings, predictions and alerts in process memory.
// It is used when no PostgreSQL instance is configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	readings    []*database.Reading
	byID        map[uuid.UUID]*database.Reading
	predictions []*database.DiseaseRiskPrediction
	alerts      []*storedAlert
	alertByID   map[uuid.UUID]*storedAlert
}

type storedAlert struct {
	alert *database.Alert
	seq   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[uuid.UUID]*database.Reading),
		alertByID: make(map[uuid.UUID]*storedAlert),
	}
}

func (s *MemoryStore) InsertReading(_ context.Context, r *database.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.readings = append(s.readings, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetReading(_ context.Context, id uuid.UUID) (*database.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) GetLatestReading(_ context.Context) (*database.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *database.Reading
	for _, r := range s.readings {
		if latest == nil || !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// GetReadingsSince returns readings at or after since, newest first
func (s *MemoryStore) GetReadingsSince(_ context.Context, since time.Time, limit int) ([]*database.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*database.Reading, 0)
	for i := len(s.readings) - 1; i >= 0; i-- {
		r := s.readings[i]
		if r.Timestamp.Before(since) {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) InsertPrediction(_ context.Context, p *database.DiseaseRiskPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.predictions = append(s.predictions, &cp)
	return nil
}

func (s *MemoryStore) GetLatestPrediction(_ context.Context) (*database.DiseaseRiskPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *database.DiseaseRiskPrediction
	for _, p := range s.predictions {
		if latest == nil || !p.Timestamp.Before(latest.Timestamp) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// PredictionsFor returns every prediction recorded for a reading
func (s *MemoryStore) PredictionsFor(readingID uuid.UUID) []*database.DiseaseRiskPrediction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*database.DiseaseRiskPrediction, 0)
	for _, p := range s.predictions {
		if p.ReadingID == readingID {
			cp := *p
			result = append(result, &cp)
		}
	}
	return result
}

func (s *MemoryStore) InsertAlert(_ context.Context, a *database.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	sa := &storedAlert{alert: &cp, seq: len(s.alerts)}
	s.alerts = append(s.alerts, sa)
	s.alertByID[cp.ID] = sa
	return nil
}

// ListUnacknowledgedAlerts returns one page of unacknowledged alerts, newest
// first. Alerts sharing a timestamp are ordered by insertion, latest first.
func (s *MemoryStore) ListUnacknowledgedAlerts(_ context.Context, offset, limit int) ([]*database.Alert, int, error) {
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("invalid alert page: offset %d, limit %d", offset, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*storedAlert, 0)
	for _, sa := range s.alerts {
		if !sa.alert.Acknowledged {
			active = append(active, sa)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		ti, tj := active[i].alert.Timestamp, active[j].alert.Timestamp
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return active[i].seq > active[j].seq
	})

	total := len(active)
	if offset >= total {
		return []*database.Alert{}, total, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}

	page := make([]*database.Alert, 0, end-offset)
	for _, sa := range active[offset:end] {
		cp := *sa.alert
		page = append(page, &cp)
	}
	return page, total, nil
}

// AcknowledgeAlert marks an alert as acknowledged. Acknowledging twice keeps
// the first acknowledgement time.
func (s *MemoryStore) AcknowledgeAlert(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sa, ok := s.alertByID[id]
	if !ok {
		return database.ErrNotFound
	}
	if sa.alert.Acknowledged {
		return nil
	}
	sa.alert.Acknowledged = true
	sa.alert.AcknowledgedAt = &at
	return nil
}

// Alerts returns every stored alert in insertion order
func (s *MemoryStore) Alerts() []*database.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*database.Alert, len(s.alerts))
	for i, sa := range s.alerts {
		cp := *sa.alert
		result[i] = &cp
	}
	return result
}

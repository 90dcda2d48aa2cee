package monitoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
)

const (
	defaultHoursBack   = 24
	recentReadingLimit = 100

	defaultPageSize = 10
)

// ReadingWithStatus is a reading annotated with its per-parameter status
type ReadingWithStatus struct {
	*database.Reading
	Status        quality.StatusReport `json:"status"`
	OverallStatus quality.Status       `json:"overallStatus"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalCount int  `json:"totalCount"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// AlertPage is one page of unacknowledged alerts
type AlertPage struct {
	Alerts     []*database.Alert `json:"alerts"`
	Pagination Pagination        `json:"pagination"`
}

// LatestReadingWithStatus returns the newest reading with its status, or nil
// when nothing has been recorded yet
func (s *Service) LatestReadingWithStatus(ctx context.Context) (*ReadingWithStatus, error) {
	r, err := s.latestReading(ctx)
	if err != nil || r == nil {
		return nil, err
	}

	report := quality.Evaluate(r)
	return &ReadingWithStatus{
		Reading:       r,
		Status:        report,
		OverallStatus: report.Worst(),
	}, nil
}

func (s *Service) latestReading(ctx context.Context) (*database.Reading, error) {
	if s.cache != nil {
		r, err := s.cache.GetLatestReading(ctx)
		if err != nil {
			s.logger.Warn("Latest reading cache read failed", zap.Error(err))
		} else if r != nil {
			return r, nil
		}
	}

	r, err := s.store.GetLatestReading(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	if r != nil && s.cache != nil {
		if err := s.cache.SetLatestReading(ctx, r); err != nil {
			s.logger.Warn("Latest reading cache write failed", zap.Error(err))
		}
	}
	return r, nil
}

// RecentReadings returns readings from the last hoursBack hours (24 when not
// positive), newest first, at most 100
func (s *Service) RecentReadings(ctx context.Context, hoursBack float64) ([]*database.Reading, error) {
	if hoursBack <= 0 {
		hoursBack = defaultHoursBack
	}
	since := s.now().Add(-time.Duration(hoursBack * float64(time.Hour)))

	readings, err := s.store.GetReadingsSince(ctx, since, recentReadingLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent readings: %w", err)
	}
	return readings, nil
}

// LatestDiseaseRisk returns the newest prediction, or nil when there is none
func (s *Service) LatestDiseaseRisk(ctx context.Context) (*database.DiseaseRiskPrediction, error) {
	if s.cache != nil {
		p, err := s.cache.GetLatestPrediction(ctx)
		if err != nil {
			s.logger.Warn("Latest prediction cache read failed", zap.Error(err))
		} else if p != nil {
			return p, nil
		}
	}

	p, err := s.store.GetLatestPrediction(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prediction: %w", err)
	}

	if p != nil && s.cache != nil {
		if err := s.cache.SetLatestPrediction(ctx, p); err != nil {
			s.logger.Warn("Latest prediction cache write failed", zap.Error(err))
		}
	}
	return p, nil
}

// ActiveAlerts returns one page of unacknowledged alerts, newest first.
// A page past the end is empty, not an error.
func (s *Service) ActiveAlerts(ctx context.Context, page, pageSize int) (*AlertPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	alerts, total, err := s.store.ListUnacknowledgedAlerts(ctx, pageOffset(page, pageSize), pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []*database.Alert{}
	}

	return &AlertPage{
		Alerts:     alerts,
		Pagination: NewPagination(page, pageSize, total),
	}, nil
}

// pageOffset returns (page-1)*pageSize, saturating at math.MaxInt, which is
// past the end of any store
func pageOffset(page, pageSize int) int {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// NewPagination computes page metadata
func NewPagination(page, pageSize, totalCount int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = totalCount / pageSize
		if totalCount%pageSize != 0 {
			totalPages++
		}
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// HourlySummaries returns hourly rollups for the last hours hours
func (s *Service) HourlySummaries(ctx context.Context, hours int) ([]*database.HourlySummary, error) {
	if s.summaries == nil {
		return nil, ErrSummariesUnavailable
	}
	if hours <= 0 {
		hours = defaultHoursBack
	}
	return s.summaries.GetHourlySummaries(ctx, s.now().Add(-time.Duration(hours)*time.Hour))
}

// DailySummaries returns daily rollups for the last days days
func (s *Service) DailySummaries(ctx context.Context, days int) ([]*database.DailySummary, error) {
	if s.summaries == nil {
		return nil, ErrSummariesUnavailable
	}
	if days <= 0 {
		days = 7
	}
	return s.summaries.GetDailySummaries(ctx, s.now().AddDate(0, 0, -days))
}

package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/smukkama/water-quality-server/internal/connection"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/monitoring"
	"github.com/smukkama/water-quality-server/internal/protocol"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

type submitResponse struct {
	ID uuid.UUID `json:"id"`
}

// Client talks to the water quality HTTP API
type Client struct {
	http *resty.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL+"/api/v1").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})

	return &Client{http: c}
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := resp.Status()
		if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
			msg = body.Error
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

// LatestWaterQuality returns the newest reading with its status
func (c *Client) LatestWaterQuality(ctx context.Context) (*monitoring.ReadingWithStatus, error) {
	var out monitoring.ReadingWithStatus
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/water-quality/latest")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestDiseaseRisk returns the newest risk prediction
func (c *Client) LatestDiseaseRisk(ctx context.Context) (*database.DiseaseRiskPrediction, error) {
	var out database.DiseaseRiskPrediction
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/disease-risk/latest")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecentReadings returns readings from the last hours hours
func (c *Client) RecentReadings(ctx context.Context, hours float64) ([]*database.Reading, error) {
	var out []*database.Reading
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if hours > 0 {
		req.SetQueryParam("hours", strconv.FormatFloat(hours, 'f', -1, 64))
	}
	if err := check(req.Get("/readings")); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveAlerts returns one page of unacknowledged alerts
func (c *Client) ActiveAlerts(ctx context.Context, page, pageSize int) (*monitoring.AlertPage, error) {
	var out monitoring.AlertPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("pageSize", strconv.Itoa(pageSize)).
		SetResult(&out).
		Get("/alerts")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcknowledgeAlert marks an alert as handled
func (c *Client) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	return check(c.http.R().
		SetContext(ctx).
		SetPathParam("id", id.String()).
		Post("/alerts/{id}/acknowledge"))
}

// SubmitReading posts a reading and returns its id
func (c *Client) SubmitReading(ctx context.Context, data *protocol.ReadingData) (uuid.UUID, error) {
	var out submitResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(data).SetResult(&out).Post("/readings")
	if err := check(resp, err); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// Simulate asks the server to generate and submit a synthetic reading
func (c *Client) Simulate(ctx context.Context, location string) (uuid.UUID, error) {
	var out submitResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if location != "" {
		req.SetQueryParam("location", location)
	}
	if err := check(req.Post("/readings/simulate")); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

// Stations lists the stations connected over TCP
func (c *Client) Stations(ctx context.Context) ([]connection.StationInfo, error) {
	var out []connection.StationInfo
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/stations")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

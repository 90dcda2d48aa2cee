package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by mutations that target a record that does not exist
var ErrNotFound = errors.New("record not found")

// Parameter names as used in status maps, alerts and exports
const (
	ParamPH              = "ph"
	ParamTurbidity       = "turbidity"
	ParamTemperature     = "temperature"
	ParamDissolvedOxygen = "dissolvedOxygen"
	ParamTotalColiform   = "totalColiform"
	ParamEColi           = "ecoli"
	ParamChlorine        = "chlorine"
)

// Reading is one water-quality sensor sample. Readings are append-only.
type Reading struct {
	ID              uuid.UUID `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Location        string    `json:"location"`
	PH              float64   `json:"ph"`
	Turbidity       float64   `json:"turbidity"`       // NTU
	Temperature     float64   `json:"temperature"`     // Celsius
	DissolvedOxygen float64   `json:"dissolvedOxygen"` // mg/L
	TotalColiform   float64   `json:"totalColiform"`   // CFU/100ml
	EColi           float64   `json:"ecoli"`           // CFU/100ml
	Chlorine        float64   `json:"chlorine"`        // mg/L
}

// Value returns the reading's value for a parameter name
func (r *Reading) Value(param string) (float64, bool) {
	switch param {
	case ParamPH:
		return r.PH, true
	case ParamTurbidity:
		return r.Turbidity, true
	case ParamTemperature:
		return r.Temperature, true
	case ParamDissolvedOxygen:
		return r.DissolvedOxygen, true
	case ParamTotalColiform:
		return r.TotalColiform, true
	case ParamEColi:
		return r.EColi, true
	case ParamChlorine:
		return r.Chlorine, true
	default:
		return 0, false
	}
}

// RiskLevel is a qualitative outbreak likelihood
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DiseaseRisk is the scoring result for a single disease
type DiseaseRisk struct {
	RiskLevel   RiskLevel `json:"riskLevel"`
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
}

// DiseaseRiskPrediction is produced once per evaluated reading.
// ReadingID is a soft reference; there is no foreign key.
type DiseaseRiskPrediction struct {
	ID          uuid.UUID   `json:"id"`
	ReadingID   uuid.UUID   `json:"readingId"`
	Timestamp   time.Time   `json:"timestamp"`
	Cholera     DiseaseRisk `json:"cholera"`
	Typhoid     DiseaseRisk `json:"typhoid"`
	HepatitisA  DiseaseRisk `json:"hepatitisA"`
	Diarrhea    DiseaseRisk `json:"diarrhea"`
	OverallRisk RiskLevel   `json:"overallRisk"`
}

// AlertType distinguishes threshold breaches from outbreak warnings
type AlertType string

const (
	AlertTypeWaterQuality AlertType = "water_quality"
	AlertTypeDiseaseRisk  AlertType = "disease_risk"
)

// AlertSeverity is the urgency of an alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a raised notification. The only permitted mutation is
// acknowledging it.
type Alert struct {
	ID             uuid.UUID     `json:"id"`
	ReadingID      *uuid.UUID    `json:"readingId,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	Parameter      *string       `json:"parameter,omitempty"`
	Value          *float64      `json:"value,omitempty"`
	Threshold      *float64      `json:"threshold,omitempty"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
}

// HourlySummary holds per-location hourly parameter averages
type HourlySummary struct {
	Location           string    `json:"location"`
	HourTimestamp      time.Time `json:"hourTimestamp"`
	AvgPH              *float64  `json:"avgPh"`
	AvgTurbidity       *float64  `json:"avgTurbidity"`
	AvgTemperature     *float64  `json:"avgTemperature"`
	AvgDissolvedOxygen *float64  `json:"avgDissolvedOxygen"`
	AvgTotalColiform   *float64  `json:"avgTotalColiform"`
	AvgEColi           *float64  `json:"avgEcoli"`
	AvgChlorine        *float64  `json:"avgChlorine"`
	SampleCount        int       `json:"sampleCount"`
	AlertCount         int       `json:"alertCount"`
}

// DailySummary holds per-location daily extremes
type DailySummary struct {
	Location           string    `json:"location"`
	Date               time.Time `json:"date"`
	MinPH              *float64  `json:"minPh"`
	MaxPH              *float64  `json:"maxPh"`
	MaxTurbidity       *float64  `json:"maxTurbidity"`
	MinTemperature     *float64  `json:"minTemperature"`
	MaxTemperature     *float64  `json:"maxTemperature"`
	MinDissolvedOxygen *float64  `json:"minDissolvedOxygen"`
	MaxTotalColiform   *float64  `json:"maxTotalColiform"`
	MaxEColi           *float64  `json:"maxEcoli"`
	MinChlorine        *float64  `json:"minChlorine"`
	MaxChlorine        *float64  `json:"maxChlorine"`
	SampleCount        int       `json:"sampleCount"`
	CriticalAlerts     int       `json:"criticalAlerts"`
}

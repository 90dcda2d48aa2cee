package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/water-quality-server/internal/database"
)

// EvaluationRequest asks an evaluator to process a persisted reading
type EvaluationRequest struct {
	ReadingID   uuid.UUID `json:"reading_id"`
	Location    string    `json:"location"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AlertNotification is published for every persisted alert
type AlertNotification struct {
	AlertID   uuid.UUID              `json:"alert_id"`
	ReadingID *uuid.UUID             `json:"reading_id,omitempty"`
	Location  string                 `json:"location,omitempty"`
	Type      database.AlertType     `json:"type"`
	Severity  database.AlertSeverity `json:"severity"`
	Message   string                 `json:"message"`
	Parameter *string                `json:"parameter,omitempty"`
	Value     *float64               `json:"value,omitempty"`
	Threshold *float64               `json:"threshold,omitempty"`
	RaisedAt  time.Time              `json:"raised_at"`
}

// NewAlertNotification builds the notification for a persisted alert
func NewAlertNotification(a *database.Alert, location string) *AlertNotification {
	return &AlertNotification{
		AlertID:   a.ID,
		ReadingID: a.ReadingID,
		Location:  location,
		Type:      a.Type,
		Severity:  a.Severity,
		Message:   a.Message,
		Parameter: a.Parameter,
		Value:     a.Value,
		Threshold: a.Threshold,
		RaisedAt:  a.Timestamp,
	}
}

// IsCritical reports whether the alert warrants paging an operator
func (n *AlertNotification) IsCritical() bool {
	return n.Severity == database.SeverityCritical
}

// EncodeEvaluationRequest encodes an EvaluationRequest to JSON
func EncodeEvaluationRequest(req *EvaluationRequest) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeEvaluationRequest decodes JSON to EvaluationRequest
func DecodeEvaluationRequest(data []byte) (*EvaluationRequest, error) {
	var req EvaluationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(n *AlertNotification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var n AlertNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

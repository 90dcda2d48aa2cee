package alerting

import (
	"fmt"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
)

// OutbreakMessage is the text of the disease-risk alert
const OutbreakMessage = "High risk of water-borne disease outbreak detected"

// rule drafts at most one alert for a reading
type rule func(r *database.Reading) *database.Alert

// rules run in this order: pH, turbidity, total coliform, E. coli
var rules = []rule{phRule, turbidityRule, coliformRule, ecoliRule}

// Generate drafts the water-quality alerts raised by a reading. Drafts carry
// no ID or timestamp; the caller assigns both when persisting.
func Generate(r *database.Reading) []*database.Alert {
	alerts := make([]*database.Alert, 0, len(rules))
	for _, rule := range rules {
		if a := rule(r); a != nil {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// OutbreakAlert drafts the alert raised when overall disease risk is high
func OutbreakAlert() *database.Alert {
	return &database.Alert{
		Type:     database.AlertTypeDiseaseRisk,
		Severity: database.SeverityCritical,
		Message:  OutbreakMessage,
	}
}

func waterQualityAlert(severity database.AlertSeverity, param, message string, value, threshold float64) *database.Alert {
	return &database.Alert{
		Type:      database.AlertTypeWaterQuality,
		Severity:  severity,
		Message:   message,
		Parameter: &param,
		Value:     &value,
		Threshold: &threshold,
	}
}

func phRule(r *database.Reading) *database.Alert {
	b := quality.MustLookup(database.ParamPH).Bounds
	if r.PH >= *b.Min && r.PH <= *b.Max {
		return nil
	}

	threshold := *b.Max
	if r.PH < *b.Min {
		threshold = *b.Min
	}
	return waterQualityAlert(database.SeverityWarning, database.ParamPH,
		fmt.Sprintf("pH level %.2f is outside safe range (%g-%g)", r.PH, *b.Min, *b.Max),
		r.PH, threshold)
}

func turbidityRule(r *database.Reading) *database.Alert {
	limit := *quality.MustLookup(database.ParamTurbidity).Max
	if r.Turbidity <= limit {
		return nil
	}
	return waterQualityAlert(database.SeverityWarning, database.ParamTurbidity,
		fmt.Sprintf("Turbidity level %.2f NTU exceeds safe limit (%g NTU)", r.Turbidity, limit),
		r.Turbidity, limit)
}

func coliformRule(r *database.Reading) *database.Alert {
	limit := *quality.MustLookup(database.ParamTotalColiform).Max
	if r.TotalColiform <= limit {
		return nil
	}
	return waterQualityAlert(database.SeverityCritical, database.ParamTotalColiform,
		fmt.Sprintf("Total coliform detected: %.2f CFU/100ml", r.TotalColiform),
		r.TotalColiform, limit)
}

func ecoliRule(r *database.Reading) *database.Alert {
	limit := *quality.MustLookup(database.ParamEColi).Max
	if r.EColi <= limit {
		return nil
	}
	return waterQualityAlert(database.SeverityCritical, database.ParamEColi,
		fmt.Sprintf("E. coli detected: %.2f CFU/100ml", r.EColi),
		r.EColi, limit)
}

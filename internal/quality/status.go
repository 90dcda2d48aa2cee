package quality

import "github.com/smukkama/water-quality-server/internal/database"

// Status is a parameter's classification against its threshold
type Status string

const (
	StatusGood     Status = "good"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

func (s Status) rank() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 0
	}
}

// Classify maps a value onto good/warning/critical. Values on a bound are
// good. Falling below min*0.8 or rising above max*1.5 is critical.
//
// With max == 0 (coliform, E. coli) max*1.5 is also 0, so any detection is
// critical and the warning tier cannot be reached. For presence/absence
// contaminants that is the intended behaviour.
func Classify(value float64, b Bounds) Status {
	if b.Min != nil && value < *b.Min {
		if value < *b.Min*0.8 {
			return StatusCritical
		}
		return StatusWarning
	}
	if b.Max != nil && value > *b.Max {
		if value > *b.Max*1.5 {
			return StatusCritical
		}
		return StatusWarning
	}
	return StatusGood
}

// StatusReport maps parameter names to their status
type StatusReport map[string]Status

// Evaluate classifies every parameter of a reading
func Evaluate(r *database.Reading) StatusReport {
	report := make(StatusReport, len(Thresholds))
	for _, t := range Thresholds {
		value, _ := r.Value(t.Parameter)
		report[t.Parameter] = Classify(value, t.Bounds)
	}
	return report
}

// Worst returns the most severe status in the report
func (r StatusReport) Worst() Status {
	worst := StatusGood
	for _, s := range r {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// Breaches returns the parameters that are not good, in table order
func (r StatusReport) Breaches() []string {
	var out []string
	for _, t := range Thresholds {
		if s, ok := r[t.Parameter]; ok && s != StatusGood {
			out = append(out, t.Parameter)
		}
	}
	return out
}

package monitoring

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/protocol"
)

// DefaultLocation is used when a submission names no location
const DefaultLocation = "Village Reservoir"

const maxLocationLength = 200

// ReadingInput is the full parameter set of a submission
type ReadingInput struct {
	Location        string
	PH              float64
	Turbidity       float64
	Temperature     float64
	DissolvedOxygen float64
	TotalColiform   float64
	EColi           float64
	Chlorine        float64
}

// FromData converts a wire payload into an input. Absent parameters are a
// validation failure.
func FromData(d *protocol.ReadingData) (ReadingInput, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return ReadingInput{}, fmt.Errorf("%w: missing %s", ErrInvalidReading, strings.Join(missing, ", "))
	}
	return ReadingInput{
		Location:        d.Location,
		PH:              *d.PH,
		Turbidity:       *d.Turbidity,
		Temperature:     *d.Temperature,
		DissolvedOxygen: *d.DissolvedOxygen,
		TotalColiform:   *d.TotalColiform,
		EColi:           *d.EColi,
		Chlorine:        *d.Chlorine,
	}, nil
}

// Validate rejects values no sensor can produce
func (in ReadingInput) Validate() error {
	values := []struct {
		name        string
		value       float64
		nonNegative bool
	}{
		{database.ParamPH, in.PH, false},
		{database.ParamTurbidity, in.Turbidity, true},
		{database.ParamTemperature, in.Temperature, false},
		{database.ParamDissolvedOxygen, in.DissolvedOxygen, true},
		{database.ParamTotalColiform, in.TotalColiform, true},
		{database.ParamEColi, in.EColi, true},
		{database.ParamChlorine, in.Chlorine, true},
	}

	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidReading, v.name)
		}
		if v.nonNegative && v.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %g", ErrInvalidReading, v.name, v.value)
		}
	}

	if in.PH < 0 || in.PH > 14 {
		return fmt.Errorf("%w: ph must be between 0 and 14, got %g", ErrInvalidReading, in.PH)
	}
	if utf8.RuneCountInString(in.Location) > maxLocationLength {
		return fmt.Errorf("%w: location exceeds %d characters", ErrInvalidReading, maxLocationLength)
	}
	return nil
}

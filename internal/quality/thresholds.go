package quality

import "github.com/smukkama/water-quality-server/internal/database"

// Bounds is a safe range. Either side may be unset.
type Bounds struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Threshold is the safe range for one monitored parameter
type Threshold struct {
	Parameter string `json:"parameter"`
	Label     string `json:"label"`
	Unit      string `json:"unit,omitempty"`
	Bounds
}

func bound(v float64) *float64 { return &v }

// Thresholds is the reference table (WHO drinking-water guidance), in
// display order
var Thresholds = []Threshold{
	{Parameter: database.ParamPH, Label: "pH", Bounds: Bounds{Min: bound(6.5), Max: bound(8.5)}},
	{Parameter: database.ParamTurbidity, Label: "Turbidity", Unit: "NTU", Bounds: Bounds{Max: bound(5)}},
	{Parameter: database.ParamTemperature, Label: "Temperature", Unit: "°C", Bounds: Bounds{Min: bound(15), Max: bound(25)}},
	{Parameter: database.ParamDissolvedOxygen, Label: "Dissolved oxygen", Unit: "mg/L", Bounds: Bounds{Min: bound(5)}},
	{Parameter: database.ParamTotalColiform, Label: "Total coliform", Unit: "CFU/100ml", Bounds: Bounds{Max: bound(0)}},
	{Parameter: database.ParamEColi, Label: "E. coli", Unit: "CFU/100ml", Bounds: Bounds{Max: bound(0)}},
	{Parameter: database.ParamChlorine, Label: "Chlorine", Unit: "mg/L", Bounds: Bounds{Min: bound(0.2), Max: bound(5)}},
}

// Lookup returns the threshold for a parameter
func Lookup(param string) (Threshold, bool) {
	for _, t := range Thresholds {
		if t.Parameter == param {
			return t, true
		}
	}
	return Threshold{}, false
}

// MustLookup is Lookup for parameters known at compile time
func MustLookup(param string) Threshold {
	t, ok := Lookup(param)
	if !ok {
		panic("quality: unknown parameter " + param)
	}
	return t
}

package risk

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
)

// Disease names as they appear in predictions
const (
	Cholera    = "cholera"
	Typhoid    = "typhoid"
	HepatitisA = "hepatitisA"
	Diarrhea   = "diarrhea"
)

const (
	mediumThreshold = 0.3
	highThreshold   = 0.7

	minConfidence = 0.75
	maxConfidence = 0.95
)

// contribution is one additive rule: when applies holds, each disease's
// probability grows by the listed amount
type contribution struct {
	name    string
	applies func(r *database.Reading) bool
	weights map[string]float64
}

var (
	phBounds       = quality.MustLookup(database.ParamPH).Bounds
	turbidityMax   = *quality.MustLookup(database.ParamTurbidity).Max
	chlorineBounds = quality.MustLookup(database.ParamChlorine).Bounds
)

// Coliform and E. coli trigger on any detection.
var contributions = []contribution{
	{
		name:    "ecoli_detected",
		applies: func(r *database.Reading) bool { return r.EColi > 0 },
		weights: map[string]float64{Cholera: 0.4, Typhoid: 0.3, Diarrhea: 0.5},
	},
	{
		name:    "coliform_detected",
		applies: func(r *database.Reading) bool { return r.TotalColiform > 0 },
		weights: map[string]float64{Cholera: 0.3, Typhoid: 0.4, HepatitisA: 0.2, Diarrhea: 0.3},
	},
	{
		name:    "high_turbidity",
		applies: func(r *database.Reading) bool { return r.Turbidity > turbidityMax },
		weights: map[string]float64{Cholera: 0.2, Diarrhea: 0.2},
	},
	{
		name:    "ph_out_of_range",
		applies: func(r *database.Reading) bool { return r.PH < *phBounds.Min || r.PH > *phBounds.Max },
		weights: map[string]float64{Typhoid: 0.1, HepatitisA: 0.1},
	},
	{
		name:    "low_chlorine",
		applies: func(r *database.Reading) bool { return r.Chlorine < *chlorineBounds.Min },
		weights: map[string]float64{Cholera: 0.2, Typhoid: 0.2, HepatitisA: 0.1, Diarrhea: 0.2},
	},
}

// ConfidenceFunc supplies the confidence annotation for one disease. It has
// no influence on probabilities or levels.
type ConfidenceFunc func(r *database.Reading, disease string) float64

// RandomConfidence draws confidence uniformly from [0.75, 0.95). A nil rng
// is seeded from the clock.
func RandomConfidence(rng *rand.Rand) ConfidenceFunc {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	var mu sync.Mutex
	return func(*database.Reading, string) float64 {
		mu.Lock()
		defer mu.Unlock()
		return minConfidence + rng.Float64()*(maxConfidence-minConfidence)
	}
}

// FixedConfidence always returns v as given. Score clamps it into the
// confidence range.
func FixedConfidence(v float64) ConfidenceFunc {
	return func(*database.Reading, string) float64 { return v }
}

// Level maps a probability onto low/medium/high
func Level(p float64) database.RiskLevel {
	if p < mediumThreshold {
		return database.RiskLow
	}
	if p < highThreshold {
		return database.RiskMedium
	}
	return database.RiskHigh
}

// Probabilities sums the rule contributions for a reading, clamped to [0, 1]
func Probabilities(r *database.Reading) map[string]float64 {
	probs := map[string]float64{Cholera: 0, Typhoid: 0, HepatitisA: 0, Diarrhea: 0}
	for _, c := range contributions {
		if !c.applies(r) {
			continue
		}
		for disease, w := range c.weights {
			probs[disease] += w
		}
	}
	for disease, p := range probs {
		probs[disease] = math.Min(p, 1.0)
	}
	return probs
}

// Factors names the rules that fired for a reading
func Factors(r *database.Reading) []string {
	var names []string
	for _, c := range contributions {
		if c.applies(r) {
			names = append(names, c.name)
		}
	}
	return names
}

// Score computes a disease risk prediction for a reading. The caller assigns
// the prediction's ID and timestamp.
func Score(r *database.Reading, conf ConfidenceFunc) *database.DiseaseRiskPrediction {
	if conf == nil {
		conf = FixedConfidence(minConfidence)
	}

	probs := Probabilities(r)
	risk := func(disease string) database.DiseaseRisk {
		return database.DiseaseRisk{
			RiskLevel:   Level(probs[disease]),
			Probability: probs[disease],
			Confidence:  clampConfidence(conf(r, disease)),
		}
	}

	overall := math.Max(
		math.Max(probs[Cholera], probs[Typhoid]),
		math.Max(probs[HepatitisA], probs[Diarrhea]),
	)

	return &database.DiseaseRiskPrediction{
		ReadingID:   r.ID,
		Cholera:     risk(Cholera),
		Typhoid:     risk(Typhoid),
		HepatitisA:  risk(HepatitisA),
		Diarrhea:    risk(Diarrhea),
		OverallRisk: Level(overall),
	}
}

func clampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < minConfidence {
		return minConfidence
	}
	if v >= maxConfidence {
		return math.Nextafter(maxConfidence, 0)
	}
	return v
}

package risk

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/water-quality-server/internal/database"
)

func safeReading() *database.Reading {
	return &database.Reading{
		ID:              uuid.New(),
		PH:              7.2,
		Turbidity:       2,
		Temperature:     20,
		DissolvedOxygen: 7,
		TotalColiform:   0,
		EColi:           0,
		Chlorine:        1.0,
	}
}

func TestScore_SafeReadingHasNoRisk(t *testing.T) {
	r := safeReading()

	p := Score(r, FixedConfidence(0.8))

	assert.Equal(t, r.ID, p.ReadingID)
	for _, d := range []database.DiseaseRisk{p.Cholera, p.Typhoid, p.HepatitisA, p.Diarrhea} {
		assert.Equal(t, 0.0, d.Probability)
		assert.Equal(t, database.RiskLow, d.RiskLevel)
		assert.Equal(t, 0.8, d.Confidence)
	}
	assert.Equal(t, database.RiskLow, p.OverallRisk)
	assert.Empty(t, Factors(r))
}

func TestScore_ContaminatedReadingIsClamped(t *testing.T) {
	r := &database.Reading{PH: 5.0, Turbidity: 10, EColi: 3, TotalColiform: 20, Chlorine: 0.1}

	p := Score(r, nil)

	// cholera: 0.4 + 0.3 + 0.2 + 0.2 exceeds 1 before clamping
	assert.Equal(t, 1.0, p.Cholera.Probability)
	assert.Equal(t, database.RiskHigh, p.Cholera.RiskLevel)
	assert.InDelta(t, 1.0, p.Typhoid.Probability, 1e-9)
	assert.InDelta(t, 0.4, p.HepatitisA.Probability, 1e-9)
	assert.Equal(t, database.RiskMedium, p.HepatitisA.RiskLevel)
	assert.Equal(t, 1.0, p.Diarrhea.Probability)
	assert.Equal(t, database.RiskHigh, p.OverallRisk)
	assert.Equal(t, []string{
		"ecoli_detected", "coliform_detected", "high_turbidity", "ph_out_of_range", "low_chlorine",
	}, Factors(r))
}

func TestScore_ColiformOnlyIsMedium(t *testing.T) {
	r := safeReading()
	r.TotalColiform = 4

	p := Score(r, nil)

	assert.InDelta(t, 0.3, p.Cholera.Probability, 1e-9)
	assert.Equal(t, database.RiskMedium, p.Cholera.RiskLevel)
	assert.InDelta(t, 0.4, p.Typhoid.Probability, 1e-9)
	assert.Equal(t, database.RiskLow, p.HepatitisA.RiskLevel)
	assert.Equal(t, database.RiskMedium, p.OverallRisk)
}

func TestScore_BoundaryValuesDoNotContribute(t *testing.T) {
	r := safeReading()
	r.PH = 6.5
	r.Turbidity = 5
	r.Chlorine = 0.2

	assert.Empty(t, Factors(r))
	assert.Equal(t, database.RiskLow, Score(r, nil).OverallRisk)
}

func TestScore_OverallRiskIsLevelOfMaximum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		r := &database.Reading{
			PH:            4 + rng.Float64()*6,
			Turbidity:     rng.Float64() * 12,
			TotalColiform: float64(rng.Intn(3)),
			EColi:         float64(rng.Intn(3)),
			Chlorine:      rng.Float64() * 0.5,
		}

		p := Score(r, RandomConfidence(rng))

		maxProb := 0.0
		for _, d := range []database.DiseaseRisk{p.Cholera, p.Typhoid, p.HepatitisA, p.Diarrhea} {
			require.GreaterOrEqual(t, d.Probability, 0.0)
			require.LessOrEqual(t, d.Probability, 1.0)
			require.GreaterOrEqual(t, d.Confidence, 0.75)
			require.Less(t, d.Confidence, 0.95)
			require.Equal(t, Level(d.Probability), d.RiskLevel)
			if d.Probability > maxProb {
				maxProb = d.Probability
			}
		}
		require.Equal(t, Level(maxProb), p.OverallRisk)
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, database.RiskLow, Level(0))
	assert.Equal(t, database.RiskLow, Level(0.29))
	assert.Equal(t, database.RiskMedium, Level(0.3))
	assert.Equal(t, database.RiskMedium, Level(0.69))
	assert.Equal(t, database.RiskHigh, Level(0.7))
	assert.Equal(t, database.RiskHigh, Level(1))
}

func TestConfidenceIsClamped(t *testing.T) {
	r := safeReading()

	assert.Equal(t, 2.0, FixedConfidence(2)(r, "cholera"), "clamping happens in Score")

	low := Score(r, FixedConfidence(0.1))
	high := Score(r, FixedConfidence(2))

	assert.Equal(t, 0.75, low.Cholera.Confidence)
	assert.Less(t, high.Cholera.Confidence, 0.95)
	assert.Greater(t, high.Cholera.Confidence, 0.949)
}

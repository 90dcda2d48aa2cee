package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_Ranges(t *testing.T) {
	s := NewSampler(42)

	detections := 0
	for i := 0; i < 1000; i++ {
		d := s.Sample("Village Reservoir")
		require.Empty(t, d.Missing())
		assert.Equal(t, "Village Reservoir", d.Location)

		assert.InDelta(t, 7.2, *d.PH, 1.01)
		assert.GreaterOrEqual(t, *d.Turbidity, 2.0)
		assert.LessOrEqual(t, *d.Turbidity, 10.0)
		assert.GreaterOrEqual(t, *d.Temperature, 20.0)
		assert.LessOrEqual(t, *d.Temperature, 30.0)
		assert.GreaterOrEqual(t, *d.DissolvedOxygen, 6.0)
		assert.LessOrEqual(t, *d.DissolvedOxygen, 10.0)
		assert.GreaterOrEqual(t, *d.TotalColiform, 0.0)
		assert.Less(t, *d.TotalColiform, 50.0)
		assert.GreaterOrEqual(t, *d.EColi, 0.0)
		assert.Less(t, *d.EColi, 10.0)
		assert.GreaterOrEqual(t, *d.Chlorine, 0.5)
		assert.LessOrEqual(t, *d.Chlorine, 2.5)

		if *d.TotalColiform > 0 {
			detections++
		}
	}

	assert.Greater(t, detections, 0)
	assert.Less(t, detections, 400, "coliform should be absent in most samples")
}

func TestSampler_Deterministic(t *testing.T) {
	a := NewSampler(7).Sample("x")
	b := NewSampler(7).Sample("x")
	assert.Equal(t, *a.PH, *b.PH)
	assert.Equal(t, *a.Chlorine, *b.Chlorine)
}

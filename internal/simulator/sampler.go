package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/smukkama/water-quality-server/internal/protocol"
)

// Sampler generates plausible synthetic readings for demos and load tests.
// Microbial counts are zero most of the time so alerts stay occasional.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler. A zero seed uses the current time.
func NewSampler(seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Sample returns one full set of parameters for location
func (s *Sampler) Sample(location string) *protocol.ReadingData {
	s.mu.Lock()
	defer s.mu.Unlock()

	ph := 7.2 + (s.rng.Float64()-0.5)*2      // 6.2-8.2
	turbidity := 2 + s.rng.Float64()*8       // 2-10 NTU
	temperature := 20 + s.rng.Float64()*10   // 20-30°C
	dissolvedOxygen := 6 + s.rng.Float64()*4 // 6-10 mg/L

	coliform := 0.0
	if s.rng.Float64() >= 0.8 { // 20% chance of detection
		coliform = float64(s.rng.Intn(50))
	}
	ecoli := 0.0
	if s.rng.Float64() >= 0.9 { // 10% chance of detection
		ecoli = float64(s.rng.Intn(10))
	}
	chlorine := 0.5 + s.rng.Float64()*2 // 0.5-2.5 mg/L

	return &protocol.ReadingData{
		Location:        location,
		PH:              value(ph),
		Turbidity:       value(turbidity),
		Temperature:     value(temperature),
		DissolvedOxygen: value(dissolvedOxygen),
		TotalColiform:   value(coliform),
		EColi:           value(ecoli),
		Chlorine:        value(chlorine),
	}
}

func value(v float64) *float64 {
	rounded := math.Round(v*100) / 100
	return &rounded
}

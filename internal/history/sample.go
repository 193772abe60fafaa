package history

import "math/rand"

type sampleParams struct {
	start float64
	drift float64
	vol   float64
}

var sampleSeed = map[string]sampleParams{
	"Equities": {start: 15000, drift: 0.0008, vol: 0.015},
	"Gold":     {start: 50000, drift: 0.0005, vol: 0.012},
	"Bitcoin":  {start: 500000, drift: 0.002, vol: 0.04},
	"REITs":    {start: 100, drift: 0.0006, vol: 0.018},
}

const sampleDays = 2520 // ten trading years

// SampleSeries generates a deterministic random-walk price series used when
// no real history is available. Seeded per asset so repeated calls agree.
func SampleSeries(asset string) []float64 {
	p, ok := sampleSeed[asset]
	if !ok {
		p = sampleParams{start: 100, drift: 0.0005, vol: 0.015}
	}

	seed := int64(42)
	for _, c := range asset {
		seed = seed*31 + int64(c)
	}
	rng := rand.New(rand.NewSource(seed))

	series := make([]float64, sampleDays)
	series[0] = p.start
	for i := 1; i < sampleDays; i++ {
		series[i] = series[i-1] * (1 + p.drift + p.vol*rng.NormFloat64())
		if series[i] <= 0 {
			series[i] = series[i-1]
		}
	}
	return series
}

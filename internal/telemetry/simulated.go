package telemetry

import "math/rand/v2"

// Simulated draws uniformly distributed readings in healthy ranges:
// heart rate in [60,100) bpm, SpO2 in [95,100) % and temperature in
// [36.0,38.0) °C with one decimal digit.
type Simulated struct {
	rng *rand.Rand
}

// NewSimulated creates a simulated source. A zero seed picks a random one.
func NewSimulated(seed uint64) *Simulated {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Simulated{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Read never fails for a known vital.
func (s *Simulated) Read(v Vital) (Reading, error) {
	switch v {
	case HeartRate:
		return Reading{Vital: v, Value: float64(s.between(60, 100))}, nil
	case SpO2:
		return Reading{Vital: v, Value: float64(s.between(95, 100))}, nil
	case Temperature:
		return Reading{Vital: v, Value: float64(s.between(360, 380)) / 10}, nil
	default:
		return Reading{}, ErrUnknownVital
	}
}

// between returns an integer in [lo, hi).
func (s *Simulated) between(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo)
}

var _ SensorSource = (*Simulated)(nil)

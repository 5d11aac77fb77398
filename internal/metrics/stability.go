package metrics

import (
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// Stability is the fraction of observations whose tip displacement stayed
// finite and below threshold. A blown-up explicit step shows up here first.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(step int, t float64, r dynamo.Report) {
	if !r.TipDisplacement.Valid {
		return
	}
	s.samples++
	v := r.TipDisplacement.Value
	if math.IsNaN(v) || math.Abs(v) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Default returns the metrics attached to every command line run.
func Default() []dynamo.Metric {
	return []dynamo.Metric{
		NewMaxDamage(),
		NewBrokenFraction(),
		NewTipPeak(),
		NewTipForce(),
		NewStability(1.0),
	}
}

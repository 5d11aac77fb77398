package metrics

import (
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// TipPeak is the largest absolute tip displacement observed.
type TipPeak struct {
	name string
	peak float64
}

func NewTipPeak() *TipPeak {
	return &TipPeak{name: "tip_peak"}
}

func (p *TipPeak) Name() string { return p.name }

func (p *TipPeak) Observe(step int, t float64, r dynamo.Report) {
	if !r.TipDisplacement.Valid {
		return
	}
	p.peak = math.Max(p.peak, math.Abs(r.TipDisplacement.Value))
}

func (p *TipPeak) Value() float64 { return p.peak }
func (p *TipPeak) Reset()         { p.peak = 0 }

// TipForce averages the absolute tip force over the reports that carry one.
type TipForce struct {
	name    string
	sum     float64
	samples int
}

func NewTipForce() *TipForce {
	return &TipForce{name: "tip_force"}
}

func (f *TipForce) Name() string { return f.name }

func (f *TipForce) Observe(step int, t float64, r dynamo.Report) {
	if !r.TipForce.Valid {
		return
	}
	f.sum += math.Abs(r.TipForce.Value)
	f.samples++
}

func (f *TipForce) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.sum / float64(f.samples)
}

func (f *TipForce) Reset() {
	f.sum = 0
	f.samples = 0
}

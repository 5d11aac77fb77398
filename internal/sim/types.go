package sim

import (
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// LoadSchedule gives the force BC load scale before a step.
type LoadSchedule interface {
	Scale(step int, t float64) float64
}

// LinearRamp grows the load scale by Increment per step up to Max.
type LinearRamp struct {
	Increment float64
	Max       float64
}

func (r LinearRamp) Scale(step int, t float64) float64 {
	s := r.Increment * float64(step)
	if r.Max > 0 {
		s = math.Min(s, r.Max)
	}
	return s
}

// Constant holds the load scale at one value.
type Constant float64

func (c Constant) Scale(int, float64) float64 { return float64(c) }

type Config struct {
	Steps         int
	WriteInterval int // report every N accepted steps, 0 reports only the last
	MaxRejections int // consecutive rejections allowed per step, 0 is unbounded
	Load          LoadSchedule
	ValidateState bool // stop on NaN or Inf displacement
}

// Record is one reported point of a run.
type Record struct {
	Step            int
	Time            float64
	Dt              float64
	LoadScale       float64
	TipDisplacement dynamo.Diagnostic
	TipForce        dynamo.Diagnostic
	MaxDamage       float64
	BrokenBonds     int
	Rejected        int
}

type Result struct {
	Records      []Record
	Final        dynamo.Report
	Displacement dynamo.Field
	Stats        dynamo.Stats
	Metrics      map[string]float64
	StepsTaken   int
	Realisation  int
}

// TipDisplacements returns the available tip displacement of each record.
func (r *Result) TipDisplacements() []float64 {
	out := make([]float64, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.TipDisplacement.Valid {
			out = append(out, rec.TipDisplacement.Value)
		}
	}
	return out
}

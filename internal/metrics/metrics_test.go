package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/peridyn/internal/dynamo"
)

func report(tip float64, damage ...float64) dynamo.Report {
	return dynamo.Report{
		Damage:          damage,
		TipDisplacement: dynamo.Available(tip),
		TipForce:        dynamo.NoData(),
	}
}

func TestMaxDamage(t *testing.T) {
	m := NewMaxDamage()
	m.Observe(1, 0.1, report(0, 0.1, 0.3))
	m.Observe(2, 0.2, report(0, 0.2, 0.1))
	assert.Equal(t, 0.3, m.Value())

	m.Reset()
	assert.Zero(t, m.Value())
}

func TestBrokenFraction(t *testing.T) {
	b := NewBrokenFraction()
	assert.Zero(t, b.Value())

	b.Observe(1, 0, dynamo.Report{BrokenBonds: 10, Bonds: 200})
	b.Observe(2, 0, dynamo.Report{BrokenBonds: 50, Bonds: 200})
	assert.InDelta(t, 0.25, b.Value(), 1e-12)

	b.Reset()
	assert.Zero(t, b.Value())
}

func TestDamageOnset(t *testing.T) {
	d := NewDamageOnset(0.2)
	d.Observe(1, 0.1, report(0, 0.1))
	assert.Equal(t, -1.0, d.Value())

	d.Observe(2, 0.2, report(0, 0.5))
	d.Observe(3, 0.3, report(0, 0.9))
	assert.Equal(t, 0.2, d.Value())

	d.Reset()
	assert.Equal(t, -1.0, d.Value())
}

func TestTipMetrics(t *testing.T) {
	peak := NewTipPeak()
	force := NewTipForce()

	reports := []dynamo.Report{
		report(0.1),
		report(-0.4),
		{TipDisplacement: dynamo.NoData(), TipForce: dynamo.Available(-2)},
		{TipDisplacement: dynamo.Available(0.2), TipForce: dynamo.Available(4)},
	}
	for i, r := range reports {
		peak.Observe(i, 0, r)
		force.Observe(i, 0, r)
	}

	assert.InDelta(t, 0.4, peak.Value(), 1e-12)
	assert.InDelta(t, 3.0, force.Value(), 1e-12)

	force.Reset()
	assert.Zero(t, force.Value())
}

func TestStability(t *testing.T) {
	s := NewStability(1.0)
	assert.Equal(t, 1.0, s.Value())

	s.Observe(1, 0, report(0.5))
	s.Observe(2, 0, report(math.NaN()))
	s.Observe(3, 0, report(5))
	s.Observe(4, 0, report(-0.5))
	s.Observe(5, 0, dynamo.Report{})
	assert.InDelta(t, 0.5, s.Value(), 1e-12)
}

func TestDefaultNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Default() {
		assert.False(t, seen[m.Name()], "duplicate metric %s", m.Name())
		seen[m.Name()] = true
	}
	assert.Len(t, seen, 5)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(dynamo.SchemeDormandPrince)

	r.RecordStep(dynamo.StepResult{Accepted: true, Dt: 1e-3}, 2, time.Millisecond)
	r.RecordStep(dynamo.StepResult{Accepted: true, Dt: 2e-3}, 0, time.Millisecond)
	r.RecordStep(dynamo.StepResult{Dt: 1e-4}, 7, time.Millisecond)
	r.RecordReport(dynamo.Report{Damage: []float64{0.1, 0.6}, BrokenBonds: 12})

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		require.Equal(t, "dormand-prince", m.GetLabel()[0].GetValue())
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
		}
	}

	assert.Equal(t, 2.0, values["peridyn_steps_total"])
	assert.Equal(t, 9.0, values["peridyn_rejected_steps_total"])
	assert.Equal(t, 1.0, values["peridyn_failed_steps_total"])
	assert.Equal(t, 2.0, values["peridyn_step_duration_seconds"])
	assert.Equal(t, 2e-3, values["peridyn_step_size"])
	assert.Equal(t, 12.0, values["peridyn_broken_bonds"])
	assert.Equal(t, 0.6, values["peridyn_max_damage"])
}

package metrics

import (
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// MaxDamage tracks the largest nodal damage seen during a run.
type MaxDamage struct {
	name string
	max  float64
}

func NewMaxDamage() *MaxDamage {
	return &MaxDamage{name: "max_damage"}
}

func (m *MaxDamage) Name() string { return m.name }

func (m *MaxDamage) Observe(step int, t float64, r dynamo.Report) {
	m.max = math.Max(m.max, r.MaxDamage())
}

func (m *MaxDamage) Value() float64 { return m.max }
func (m *MaxDamage) Reset()         { m.max = 0 }

// BrokenFraction is the fraction of bonds broken at the last observation.
type BrokenFraction struct {
	name    string
	broken  int
	bonds   int
	samples int
}

func NewBrokenFraction() *BrokenFraction {
	return &BrokenFraction{name: "broken_fraction"}
}

func (b *BrokenFraction) Name() string { return b.name }

func (b *BrokenFraction) Observe(step int, t float64, r dynamo.Report) {
	b.broken = r.BrokenBonds
	b.bonds = r.Bonds
	b.samples++
}

func (b *BrokenFraction) Value() float64 {
	if b.samples == 0 || b.bonds == 0 {
		return 0
	}
	return float64(b.broken) / float64(b.bonds)
}

func (b *BrokenFraction) Reset() {
	b.broken = 0
	b.bonds = 0
	b.samples = 0
}

// DamageOnset records the first time at which any node exceeds threshold,
// or -1 while none has.
type DamageOnset struct {
	name      string
	threshold float64
	onset     float64
	seen      bool
}

func NewDamageOnset(threshold float64) *DamageOnset {
	return &DamageOnset{name: "damage_onset", threshold: threshold}
}

func (d *DamageOnset) Name() string { return d.name }

func (d *DamageOnset) Observe(step int, t float64, r dynamo.Report) {
	if d.seen || r.MaxDamage() <= d.threshold {
		return
	}
	d.onset = t
	d.seen = true
}

func (d *DamageOnset) Value() float64 {
	if !d.seen {
		return -1
	}
	return d.onset
}

func (d *DamageOnset) Reset() {
	d.onset = 0
	d.seen = false
}

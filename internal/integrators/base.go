package integrators

import (
	"log/slog"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// base carries the state every scheme shares: the committed displacement,
// the force at the start of the last step, time and counters.
type base struct {
	scheme dynamo.Scheme
	ctx    *compute.Context
	cfg    dynamo.Config
	logger *slog.Logger

	u dynamo.Field
	f dynamo.Field

	t      float64
	dt     float64
	stats  dynamo.Stats
	closed bool
}

func newBase(scheme dynamo.Scheme, ctx *compute.Context, cfg dynamo.Config) base {
	n := ctx.NumNodes()
	return base{
		scheme: scheme,
		ctx:    ctx,
		cfg:    cfg,
		logger: ctx.Logger().With("component", "integrators", "scheme", string(scheme)),
		u:      dynamo.NewField(n),
		f:      dynamo.NewField(n),
		dt:     cfg.Dt,
	}
}

func (b *base) Name() dynamo.Scheme { return b.scheme }

func (b *base) Stats() dynamo.Stats {
	s := b.stats
	s.Time = b.t
	s.NextDt = b.dt
	return s
}

// Displacement returns a copy of the committed displacement.
func (b *base) Displacement() dynamo.Field { return b.u.Clone() }

func (b *base) IncrementLoad(scale float64) { b.ctx.SetLoadScale(scale) }

func (b *base) Report() dynamo.Report {
	fam := b.ctx.Family()
	dof := b.cfg.DiagnosticDOF
	return dynamo.Report{
		Damage:          append([]float64(nil), b.ctx.Damage()...),
		TipDisplacement: b.ctx.TipMean(b.u, dof),
		TipForce:        b.ctx.TipMean(b.f, dof),
		BrokenBonds:     fam.Broken(),
		Bonds:           fam.Bonds(),
	}
}

// Reset zeroes the state and restores every bond for a new realisation.
func (b *base) Reset(steps int) error {
	if b.closed {
		return dynamo.ErrClosed
	}
	b.u.Zero()
	if b.f != nil {
		b.f.Zero()
	}
	b.t = 0
	b.dt = b.cfg.Dt
	b.stats = dynamo.Stats{}
	b.ctx.RestoreBonds()
	return nil
}

func (b *base) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.ctx.Close()
}

func (b *base) evaluate(u, f dynamo.Field, check bool) {
	b.ctx.Forces(u, f, check)
	b.stats.Evaluations++
}

// accept commits a step of dt unless the device failed during it.
func (b *base) accept(dt float64) (dynamo.StepResult, error) {
	if err := b.ctx.Err(); err != nil {
		return dynamo.StepResult{Dt: dt, NextDt: b.dt}, err
	}
	b.t += dt
	b.stats.Steps++
	b.stats.LastDt = dt
	return dynamo.StepResult{Accepted: true, Dt: dt, NextDt: b.dt}, nil
}

// axpy writes x + a*y into dst.
func axpy(dst, x dynamo.Field, a float64, y dynamo.Field) {
	for i := range dst {
		dst[i] = x[i] + a*y[i]
	}
}

package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// Euler is the quasi-static first-order scheme u' = u + dt*f*dampening.
// The force kernel breaks bonds as it evaluates.
type Euler struct {
	base
}

func NewEuler(ctx *compute.Context, cfg dynamo.Config) *Euler {
	return &Euler{base: newBase(dynamo.SchemeEuler, ctx, cfg)}
}

func (e *Euler) Step() (dynamo.StepResult, error) {
	if e.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	dt := e.dt
	e.evaluate(e.u, e.f, true)
	for i := range e.u {
		e.u[i] = compute.EulerUpdate(e.u[i], e.f[i], dt, e.cfg.Dampening)
	}
	e.ctx.ApplyBC(e.u, nil, e.t+dt)
	return e.accept(dt)
}

// LumpedEuler is Euler with the update fused into the reduction pass.
// It produces the same displacements as Euler. The nodal force is never
// materialised, so the tip force is not available.
type LumpedEuler struct {
	base
}

func NewLumpedEuler(ctx *compute.Context, cfg dynamo.Config) *LumpedEuler {
	l := &LumpedEuler{base: newBase(dynamo.SchemeLumpedEuler, ctx, cfg)}
	l.f = nil
	return l
}

func (l *LumpedEuler) Step() (dynamo.StepResult, error) {
	if l.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	dt := l.dt
	l.ctx.LumpedEuler(l.u, dt, l.cfg.Dampening, l.t+dt)
	l.stats.Evaluations++
	return l.accept(dt)
}

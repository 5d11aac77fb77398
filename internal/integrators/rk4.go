package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// RK4 is the classical fourth-order Runge-Kutta scheme on du/dt = f(u).
// Stages are evaluated without the failure test; bonds are checked once
// on the committed displacement.
type RK4 struct {
	base
	k2, k3, k4 dynamo.Field
	scratch    dynamo.Field
}

func NewRK4(ctx *compute.Context, cfg dynamo.Config) *RK4 {
	n := ctx.NumNodes()
	return &RK4{
		base:    newBase(dynamo.SchemeRK4, ctx, cfg),
		k2:      dynamo.NewField(n),
		k3:      dynamo.NewField(n),
		k4:      dynamo.NewField(n),
		scratch: dynamo.NewField(n),
	}
}

func (r *RK4) Step() (dynamo.StepResult, error) {
	if r.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	dt := r.dt
	t := r.t
	k1 := r.f

	r.evaluate(r.u, k1, false)

	axpy(r.scratch, r.u, 0.5*dt, k1)
	r.ctx.ApplyBC(r.scratch, nil, t+0.5*dt)
	r.evaluate(r.scratch, r.k2, false)

	axpy(r.scratch, r.u, 0.5*dt, r.k2)
	r.ctx.ApplyBC(r.scratch, nil, t+0.5*dt)
	r.evaluate(r.scratch, r.k3, false)

	axpy(r.scratch, r.u, dt, r.k3)
	r.ctx.ApplyBC(r.scratch, nil, t+dt)
	r.evaluate(r.scratch, r.k4, false)

	dt6 := dt / 6.0
	for i := range r.u {
		r.u[i] += dt6 * (k1[i] + 2*r.k2[i] + 2*r.k3[i] + r.k4[i])
	}
	r.ctx.ApplyBC(r.u, nil, t+dt)
	r.ctx.CheckBonds(r.u)
	return r.accept(dt)
}

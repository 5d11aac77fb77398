package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// EulerCromer is the dynamic semi-implicit scheme
//
//	a  = (f - eta*v) / rho
//	v' = v + dt*a
//	u' = u + dt*v'
type EulerCromer struct {
	base
	v dynamo.Field
}

func NewEulerCromer(ctx *compute.Context, cfg dynamo.Config) *EulerCromer {
	return &EulerCromer{
		base: newBase(dynamo.SchemeEulerCromer, ctx, cfg),
		v:    dynamo.NewField(ctx.NumNodes()),
	}
}

func (e *EulerCromer) Velocity() dynamo.Field { return e.v.Clone() }

func (e *EulerCromer) Step() (dynamo.StepResult, error) {
	if e.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	dt := e.dt
	rho, eta := e.cfg.Density, e.cfg.Damping

	e.evaluate(e.u, e.f, true)
	for i := range e.u {
		a := (e.f[i] - eta*e.v[i]) / rho
		e.v[i] += dt * a
		e.u[i] += dt * e.v[i]
	}
	e.ctx.ApplyBC(e.u, e.v, e.t+dt)
	return e.accept(dt)
}

func (e *EulerCromer) Reset(steps int) error {
	if err := e.base.Reset(steps); err != nil {
		return err
	}
	e.v.Zero()
	return nil
}

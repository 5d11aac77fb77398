package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// VelocityVerlet is the dynamic kick-drift-kick scheme. The acceleration at
// the initial state is computed once before the first step and again after
// every Reset.
type VelocityVerlet struct {
	base
	v           dynamo.Field
	a           dynamo.Field
	initialized bool
}

func NewVelocityVerlet(ctx *compute.Context, cfg dynamo.Config) *VelocityVerlet {
	n := ctx.NumNodes()
	return &VelocityVerlet{
		base: newBase(dynamo.SchemeVelocityVerlet, ctx, cfg),
		v:    dynamo.NewField(n),
		a:    dynamo.NewField(n),
	}
}

func (vv *VelocityVerlet) Velocity() dynamo.Field { return vv.v.Clone() }

func (vv *VelocityVerlet) acceleration() {
	rho, eta := vv.cfg.Density, vv.cfg.Damping
	for i := range vv.a {
		vv.a[i] = (vv.f[i] - eta*vv.v[i]) / rho
	}
}

// Initialize evaluates the initial acceleration. Step calls it on demand.
func (vv *VelocityVerlet) Initialize() {
	vv.evaluate(vv.u, vv.f, false)
	vv.acceleration()
	vv.initialized = true
}

func (vv *VelocityVerlet) Step() (dynamo.StepResult, error) {
	if vv.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	if !vv.initialized {
		vv.Initialize()
	}
	dt := vv.dt
	half := 0.5 * dt

	for i := range vv.u {
		vv.v[i] += half * vv.a[i]
		vv.u[i] += dt * vv.v[i]
	}
	vv.ctx.ApplyBC(vv.u, vv.v, vv.t+dt)

	vv.evaluate(vv.u, vv.f, true)
	vv.acceleration()
	for i := range vv.v {
		vv.v[i] += half * vv.a[i]
	}
	vv.ctx.ApplyBC(vv.u, vv.v, vv.t+dt)
	return vv.accept(dt)
}

func (vv *VelocityVerlet) Reset(steps int) error {
	if err := vv.base.Reset(steps); err != nil {
		return err
	}
	vv.v.Zero()
	vv.a.Zero()
	vv.initialized = false
	return nil
}

package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// DormandPrince is the adaptive 5(4) embedded pair. The error of an
// attempt is the mean nodal norm of the difference between the two
// solutions.
type DormandPrince struct {
	base
	ctl controller

	k2, k3, k4, k5, k6, k7 dynamo.Field
	stage, next, errn      dynamo.Field
}

func NewDormandPrince(ctx *compute.Context, cfg dynamo.Config) *DormandPrince {
	n := ctx.NumNodes()
	return &DormandPrince{
		base:  newBase(dynamo.SchemeDormandPrince, ctx, cfg),
		ctl:   newController(cfg),
		k2:    dynamo.NewField(n),
		k3:    dynamo.NewField(n),
		k4:    dynamo.NewField(n),
		k5:    dynamo.NewField(n),
		k6:    dynamo.NewField(n),
		k7:    dynamo.NewField(n),
		stage: dynamo.NewField(n),
		next:  dynamo.NewField(n),
		errn:  dynamo.NewField(n),
	}
}

func (d *DormandPrince) Step() (dynamo.StepResult, error) {
	if d.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	return d.adaptiveStep(d.ctl, d.attempt, d.commit)
}

func (d *DormandPrince) attempt(dt float64) float64 {
	u, k1, x, t := d.u, d.f, d.stage, d.t

	d.evaluate(u, k1, false)

	for i := range x {
		x[i] = u[i] + dt*b21*k1[i]
	}
	d.ctx.ApplyBC(x, nil, t+a2*dt)
	d.evaluate(x, d.k2, false)

	for i := range x {
		x[i] = u[i] + dt*(b31*k1[i]+b32*d.k2[i])
	}
	d.ctx.ApplyBC(x, nil, t+a3*dt)
	d.evaluate(x, d.k3, false)

	for i := range x {
		x[i] = u[i] + dt*(b41*k1[i]+b42*d.k2[i]+b43*d.k3[i])
	}
	d.ctx.ApplyBC(x, nil, t+a4*dt)
	d.evaluate(x, d.k4, false)

	for i := range x {
		x[i] = u[i] + dt*(b51*k1[i]+b52*d.k2[i]+b53*d.k3[i]+b54*d.k4[i])
	}
	d.ctx.ApplyBC(x, nil, t+a5*dt)
	d.evaluate(x, d.k5, false)

	for i := range x {
		x[i] = u[i] + dt*(b61*k1[i]+b62*d.k2[i]+b63*d.k3[i]+b64*d.k4[i]+b65*d.k5[i])
	}
	d.ctx.ApplyBC(x, nil, t+dt)
	d.evaluate(x, d.k6, false)

	for i := range d.next {
		d.next[i] = u[i] + dt*(c1*k1[i]+c3*d.k3[i]+c4*d.k4[i]+c5*d.k5[i]+c6*d.k6[i])
	}
	d.ctx.ApplyBC(d.next, nil, t+dt)
	d.evaluate(d.next, d.k7, false)

	for i := range d.errn {
		if d.ctx.Held(i) {
			d.errn[i] = 0
			continue
		}
		d.errn[i] = dt * (dc1*k1[i] + dc3*d.k3[i] + dc4*d.k4[i] + dc5*d.k5[i] + dc6*d.k6[i] + dc7*d.k7[i])
	}
	return meanNodeNorm(d.errn)
}

func (d *DormandPrince) commit(dt float64) {
	copy(d.u, d.next)
	d.ctx.CheckBonds(d.u)
}

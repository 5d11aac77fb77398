package integrators

import (
	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// HeunEuler is the adaptive 2(1) embedded pair: an Euler predictor and
// the trapezoidal corrector, with the error taken as their difference.
type HeunEuler struct {
	base
	ctl controller

	k2     dynamo.Field
	first  dynamo.Field
	second dynamo.Field
	errn   dynamo.Field
}

func NewHeunEuler(ctx *compute.Context, cfg dynamo.Config) *HeunEuler {
	n := ctx.NumNodes()
	return &HeunEuler{
		base:   newBase(dynamo.SchemeHeunEuler, ctx, cfg),
		ctl:    newController(cfg),
		k2:     dynamo.NewField(n),
		first:  dynamo.NewField(n),
		second: dynamo.NewField(n),
		errn:   dynamo.NewField(n),
	}
}

func (h *HeunEuler) Step() (dynamo.StepResult, error) {
	if h.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	return h.adaptiveStep(h.ctl, h.attempt, h.commit)
}

func (h *HeunEuler) attempt(dt float64) float64 {
	k1 := h.f
	h.evaluate(h.u, k1, false)

	axpy(h.first, h.u, dt, k1)
	h.ctx.ApplyBC(h.first, nil, h.t+dt)
	h.evaluate(h.first, h.k2, false)

	half := 0.5 * dt
	for i := range h.second {
		h.second[i] = h.u[i] + half*(k1[i]+h.k2[i])
	}
	h.ctx.ApplyBC(h.second, nil, h.t+dt)

	for i := range h.errn {
		h.errn[i] = h.second[i] - h.first[i]
	}
	return meanNodeNorm(h.errn)
}

func (h *HeunEuler) commit(dt float64) {
	copy(h.u, h.second)
	h.ctx.CheckBonds(h.u)
}

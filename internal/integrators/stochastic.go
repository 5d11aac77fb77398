package integrators

import (
	"fmt"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/noise"
)

// StochasticEuler adds a precomputed correlated noise increment to the
// Euler update at every step index. Each Reset starts a new realisation
// with its own noise sequence.
type StochasticEuler struct {
	base
	source      noise.Source
	noise       []dynamo.Field
	step        int
	realisation int
}

func NewStochasticEuler(ctx *compute.Context, cfg dynamo.Config, source noise.Source, steps int) (*StochasticEuler, error) {
	if source == nil {
		return nil, &dynamo.SetupError{Resource: "noise source", Err: fmt.Errorf("%w: no noise source", dynamo.ErrParameterBounds)}
	}
	s := &StochasticEuler{
		base:        newBase(dynamo.SchemeStochasticEuler, ctx, cfg),
		source:      source,
		realisation: -1,
	}
	if err := s.Reset(steps); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StochasticEuler) Realisation() int { return s.realisation }

func (s *StochasticEuler) Step() (dynamo.StepResult, error) {
	if s.closed {
		return dynamo.StepResult{}, dynamo.ErrClosed
	}
	if s.step >= len(s.noise) {
		return dynamo.StepResult{}, fmt.Errorf("%w: noise for %d steps exhausted", dynamo.ErrParameterBounds, len(s.noise))
	}
	dt := s.dt
	pn := s.noise[s.step]

	s.evaluate(s.u, s.f, true)
	for i := range s.u {
		s.u[i] = compute.EulerUpdate(s.u[i], s.f[i], dt, s.cfg.Dampening) + pn[i]
	}
	s.ctx.ApplyBC(s.u, nil, s.t+dt)
	s.step++
	return s.accept(dt)
}

// Reset zeroes displacement, force and damage, restores the bonds and
// samples noise for the next realisation of the given number of steps.
func (s *StochasticEuler) Reset(steps int) error {
	if err := s.base.Reset(steps); err != nil {
		return err
	}
	s.realisation++
	pn, err := s.source.Sample(s.cfg.Seed+int64(s.realisation), steps)
	if err != nil {
		return err
	}
	for _, f := range pn {
		if len(f) != len(s.u) {
			return &dynamo.FieldError{Field: "noise", Want: len(s.u), Got: len(f)}
		}
	}
	s.noise = pn
	s.step = 0
	return nil
}

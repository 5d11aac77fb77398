package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// controller decides on an embedded error estimate. A step whose error
// exceeds errMax is rejected and dt shrinks by grow; a step under errMin
// is accepted and dt grows by grow for the next call.
type controller struct {
	errMax float64
	errMin float64
	grow   float64
	minDt  float64
}

func newController(cfg dynamo.Config) controller {
	hi, lo := cfg.ErrorMax, cfg.ErrorMin
	if hi == 0 && lo == 0 {
		hi, lo = dynamo.DefaultErrorBounds(cfg.Scheme)
	}
	grow := cfg.GrowFactor
	if grow <= 1 {
		grow = 1.1
	}
	return controller{errMax: hi, errMin: lo, grow: grow, minDt: cfg.MinDt}
}

// decide returns whether to commit and the dt for the next attempt. A NaN
// error is rejected like an oversized one.
func (c controller) decide(errNorm, dt float64) (bool, float64, error) {
	if !(errNorm <= c.errMax) {
		next := dt / c.grow
		if c.minDt > 0 && next < c.minDt {
			return false, dt, fmt.Errorf("%w: dt %g below %g", dynamo.ErrStepTooSmall, next, c.minDt)
		}
		return false, next, nil
	}
	if errNorm < c.errMin {
		return true, dt * c.grow, nil
	}
	return true, dt, nil
}

// meanNodeNorm is the mean over nodes of the Euclidean norm of e.
func meanNodeNorm(e dynamo.Field) float64 {
	n := e.NumNodes()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += e.NodeNorm(i)
	}
	return sum / float64(n)
}

// adaptiveStep runs attempt and applies the controller. attempt must not
// change committed state; commit is called only for accepted steps.
func (b *base) adaptiveStep(c controller, attempt func(dt float64) float64, commit func(dt float64)) (dynamo.StepResult, error) {
	dt := b.dt
	errNorm := attempt(dt)
	if err := b.ctx.Err(); err != nil {
		return dynamo.StepResult{Dt: dt, NextDt: dt}, err
	}
	ok, next, err := c.decide(errNorm, dt)
	if err != nil {
		return dynamo.StepResult{Dt: dt, NextDt: dt, Error: errNorm}, err
	}
	if !ok {
		b.stats.Rejected++
		b.dt = next
		b.logger.Debug("step rejected", "dt", dt, "next_dt", next, "error", errNorm)
		return dynamo.StepResult{Accepted: false, Dt: dt, NextDt: next, Error: errNorm}, nil
	}
	commit(dt)
	if next != dt {
		b.logger.Debug("step size increased", "dt", dt, "next_dt", next, "error", errNorm)
	}
	b.dt = next
	res, err := b.accept(dt)
	res.Error = errNorm
	return res, err
}

// Advance calls Step until it is accepted. More than maxRejections
// consecutive rejections fail with ErrTooManyRejections; zero means no
// limit.
func Advance(it dynamo.Integrator, maxRejections int) (dynamo.StepResult, int, error) {
	rejected := 0
	for {
		res, err := it.Step()
		if err != nil {
			return res, rejected, err
		}
		if res.Accepted {
			return res, rejected, nil
		}
		rejected++
		if maxRejections > 0 && rejected > maxRejections {
			return res, rejected, fmt.Errorf("%w: %d consecutive rejections at dt %g", dynamo.ErrTooManyRejections, rejected, res.NextDt)
		}
		if math.IsNaN(res.NextDt) {
			return res, rejected, fmt.Errorf("%w: dt is NaN", dynamo.ErrStepTooSmall)
		}
	}
}

package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/noise"
)

type options struct {
	noise      noise.Source
	noiseSteps int
}

type Option func(*options)

// WithNoise supplies the noise source and realisation length of the
// stochastic scheme.
func WithNoise(src noise.Source, steps int) Option {
	return func(o *options) {
		o.noise = src
		o.noiseSteps = steps
	}
}

type constructor func(ctx *compute.Context, cfg dynamo.Config, o options) (dynamo.Integrator, error)

var registry = map[dynamo.Scheme]constructor{
	dynamo.SchemeEuler: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewEuler(ctx, cfg), nil
	},
	dynamo.SchemeLumpedEuler: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewLumpedEuler(ctx, cfg), nil
	},
	dynamo.SchemeEulerCromer: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewEulerCromer(ctx, cfg), nil
	},
	dynamo.SchemeVelocityVerlet: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewVelocityVerlet(ctx, cfg), nil
	},
	dynamo.SchemeRK4: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewRK4(ctx, cfg), nil
	},
	dynamo.SchemeDormandPrince: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewDormandPrince(ctx, cfg), nil
	},
	dynamo.SchemeHeunEuler: func(ctx *compute.Context, cfg dynamo.Config, _ options) (dynamo.Integrator, error) {
		return NewHeunEuler(ctx, cfg), nil
	},
	dynamo.SchemeStochasticEuler: func(ctx *compute.Context, cfg dynamo.Config, o options) (dynamo.Integrator, error) {
		return NewStochasticEuler(ctx, cfg, o.noise, o.noiseSteps)
	},
}

// New builds the scheme named by cfg over ctx. The integrator takes
// ownership of ctx and closes it.
func New(ctx *compute.Context, cfg dynamo.Config, opts ...Option) (dynamo.Integrator, error) {
	if cfg.Scheme.Adaptive() && cfg.ErrorMax == 0 && cfg.ErrorMin == 0 {
		cfg.ErrorMax, cfg.ErrorMin = dynamo.DefaultErrorBounds(cfg.Scheme)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fn, ok := registry[cfg.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownScheme, cfg.Scheme)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ctx.SetReduction(cfg.Reduction)
	return fn(ctx, cfg, o)
}

// Names lists the registered schemes in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for s := range registry {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Package optim sweeps configuration parameters over a grid and keeps the
// combination minimising a run metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/peridyn/internal/config"
	"github.com/san-kum/peridyn/internal/sim"
)

// Setters maps the sweepable parameter names to their config fields.
var Setters = map[string]func(c *config.Config, v float64){
	"dt":               func(c *config.Config, v float64) { c.Integration.Dt = v },
	"dampening":        func(c *config.Config, v float64) { c.Integration.Dampening = v },
	"damping":          func(c *config.Config, v float64) { c.Material.Damping = v },
	"density":          func(c *config.Config, v float64) { c.Material.Density = v },
	"elastic_modulus":  func(c *config.Config, v float64) { c.Material.ElasticModulus = v },
	"critical_stretch": func(c *config.Config, v float64) { c.Material.CriticalStretch = v },
	"horizon":          func(c *config.Config, v float64) { c.Material.Horizon = v },
	"ramp_rate":        func(c *config.Config, v float64) { c.Boundary.RampRate = v },
	"force":            func(c *config.Config, v float64) { c.Boundary.Force = v },
}

func ParamNames() []string {
	names := make([]string, 0, len(Setters))
	for name := range Setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunFunc runs one configuration and returns its results.
type RunFunc func(ctx context.Context, cfg *config.Config) (*sim.Result, error)

type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, p := range params {
		if _, ok := Setters[p]; !ok {
			return nil, fmt.Errorf("unknown sweep parameter %q", p)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("empty range for %q", p)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search runs every grid point on a copy of base. Failed trials are kept
// in the returned list and skipped for the optimum; a NaN metric never
// wins.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, run RunFunc, metricName string) (map[string]float64, float64, []Trial, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	trials := make([]Trial, 0)

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		cfg := *base
		for name, v := range params {
			Setters[name](&cfg, v)
		}
		trial := Trial{Params: params}
		res, err := run(ctx, &cfg)
		switch {
		case err != nil:
			trial.Err = err
		default:
			val, ok := res.Metrics[metricName]
			if !ok {
				trial.Err = fmt.Errorf("metric %q not recorded", metricName)
				break
			}
			trial.Value = val
			if val < best {
				best = val
				bestParams = params
			}
		}
		trials = append(trials, trial)
	})
	if err != nil {
		return nil, 0, trials, err
	}
	if bestParams == nil {
		errs := make([]error, 0, len(trials))
		for _, t := range trials {
			errs = append(errs, t.Err)
		}
		return nil, 0, trials, fmt.Errorf("no successful trial: %w", errors.Join(errs...))
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

// Package experiment assembles a runnable simulation from a file
// configuration: model, device context, integrator, metrics and outputs.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/config"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/integrators"
	"github.com/san-kum/peridyn/internal/metrics"
	"github.com/san-kum/peridyn/internal/model"
	"github.com/san-kum/peridyn/internal/noise"
	"github.com/san-kum/peridyn/internal/sim"
	"github.com/san-kum/peridyn/internal/vtk"
)

type Experiment struct {
	cfg       *config.Config
	dcfg      dynamo.Config
	model     *model.Model
	noise     *noise.Generator
	ctx       *compute.Context
	integ     dynamo.Integrator
	simulator *sim.Simulator
	recorder  *metrics.Recorder
	vtk       *vtk.Observer
	logger    *slog.Logger
}

// New builds every collaborator of a run. The returned experiment owns the
// device context; call Close when done.
func New(cfg *config.Config, logger *slog.Logger) (*Experiment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "experiment", "preset", cfg.Preset)

	dcfg, err := cfg.Dynamo()
	if err != nil {
		return nil, err
	}
	m, err := cfg.BuildModel()
	if err != nil {
		return nil, err
	}
	e := &Experiment{
		cfg:      cfg,
		dcfg:     dcfg,
		model:    m,
		recorder: metrics.NewRecorder(dcfg.Scheme),
		logger:   logger,
	}
	if dcfg.Scheme == dynamo.SchemeStochasticEuler {
		if e.noise, err = cfg.NoiseSource(m); err != nil {
			return nil, err
		}
	}

	e.ctx, e.integ, err = e.build(0)
	if err != nil {
		return nil, err
	}
	e.simulator = sim.New(e.integ, logger)
	e.prepare(e.simulator)

	if cfg.Output.VTK {
		obs, err := vtk.NewObserver(filepath.Join(cfg.Output.Dir, "vtk"), m.Coords)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.vtk = obs
		e.simulator.AddObserver(obs)
	}

	logger.Info("experiment ready",
		"scheme", dcfg.Scheme,
		"backend", e.ctx.BackendName(),
		"nodes", m.NumNodes(),
		"bonds", m.Family.Bonds(),
	)
	return e, nil
}

// build opens a device context and integrator over the experiment's model.
// Member i draws its noise from Seed+i.
func (e *Experiment) build(member int) (*compute.Context, dynamo.Integrator, error) {
	dcfg := e.dcfg
	dcfg.Seed += int64(member)

	var opts []integrators.Option
	if e.noise != nil {
		opts = append(opts, integrators.WithNoise(e.noise, e.cfg.Run.Steps))
	}
	ctx, err := compute.NewContext(e.model, e.cfg.Compute(e.logger))
	if err != nil {
		return nil, nil, err
	}
	integ, err := integrators.New(ctx, dcfg, opts...)
	if err != nil {
		ctx.Close()
		return nil, nil, err
	}
	return ctx, integ, nil
}

func (e *Experiment) prepare(s *sim.Simulator) {
	for _, metric := range metrics.Default() {
		s.AddMetric(metric)
	}
	s.SetRecorder(e.recorder)
}

// Run executes every configured realisation in turn on the experiment's
// integrator.
func (e *Experiment) Run(ctx context.Context) ([]*sim.Result, error) {
	results, err := e.simulator.RunRealisations(ctx, e.cfg.Sim(), max(e.cfg.Run.Realisations, 1))
	if err == nil && e.vtk != nil && e.vtk.Err() != nil {
		err = fmt.Errorf("write vtk: %w", e.vtk.Err())
	}
	return results, err
}

// RunEnsemble runs members independent copies of the experiment
// concurrently, each on its own device context. VTK output is not written.
func (e *Experiment) RunEnsemble(ctx context.Context, members int) ([]*sim.Result, error) {
	if members < 1 {
		return nil, fmt.Errorf("%w: %d ensemble members", dynamo.ErrParameterBounds, members)
	}
	factory := func(member int) (dynamo.Integrator, error) {
		_, integ, err := e.build(member)
		return integ, err
	}
	ens := sim.NewEnsemble(factory, members, e.logger)
	ens.SetPrepare(func(_ int, s *sim.Simulator) { e.prepare(s) })
	return ens.Run(ctx, e.cfg.Sim())
}

func (e *Experiment) Model() *model.Model           { return e.model }
func (e *Experiment) Integrator() dynamo.Integrator { return e.integ }
func (e *Experiment) Recorder() *metrics.Recorder   { return e.recorder }
func (e *Experiment) BackendName() string           { return e.ctx.BackendName() }

func (e *Experiment) Close() {
	if e.integ != nil {
		e.integ.Close()
		return
	}
	e.ctx.Close()
}

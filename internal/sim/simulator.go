package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/integrators"
)

// StepRecorder receives the outcome of every advanced step.
type StepRecorder interface {
	RecordStep(res dynamo.StepResult, rejected int, elapsed time.Duration)
	RecordReport(r dynamo.Report)
}

// RealisationObserver is an observer told which realisation the following
// steps belong to.
type RealisationObserver interface {
	SetRealisation(r int)
}

// Simulator drives one integrator through a loading protocol. It is not
// safe for concurrent use.
type Simulator struct {
	integ     dynamo.Integrator
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	recorder  StepRecorder
	logger    *slog.Logger
}

func New(integ dynamo.Integrator, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		integ:     integ,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
		logger:    logger.With("component", "sim", "scheme", string(integ.Name())),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) SetRecorder(r StepRecorder)    { s.recorder = r }

func (s *Simulator) Integrator() dynamo.Integrator { return s.integ }

func validateConfig(cfg Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", dynamo.ErrParameterBounds, cfg.Steps)
	}
	if cfg.WriteInterval < 0 || cfg.MaxRejections < 0 {
		return fmt.Errorf("%w: negative write interval or rejection cap", dynamo.ErrParameterBounds)
	}
	return nil
}

// Run advances cfg.Steps accepted steps. Cancellation is honoured between
// steps; the partial result is returned alongside the error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{
		Records: make([]Record, 0),
		Metrics: make(map[string]float64),
	}
	start := time.Now()
	load := 0.0

	for step := 1; step <= cfg.Steps; step++ {
		select {
		case <-ctx.Done():
			return s.finish(result), s.fail(step, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}

		if cfg.Load != nil {
			load = cfg.Load.Scale(step, s.integ.Stats().Time)
			s.integ.IncrementLoad(load)
		}

		t0 := time.Now()
		res, rejected, err := integrators.Advance(s.integ, cfg.MaxRejections)
		if s.recorder != nil {
			s.recorder.RecordStep(res, rejected, time.Since(t0))
		}
		if err != nil {
			return s.finish(result), s.fail(step, err)
		}
		result.StepsTaken++

		last := step == cfg.Steps
		if !last && (cfg.WriteInterval == 0 || step%cfg.WriteInterval != 0) {
			if cfg.ValidateState && !s.integ.Displacement().IsValid() {
				return s.finish(result), s.fail(step, errInvalidState)
			}
			continue
		}

		u := s.integ.Displacement()
		rep := s.integ.Report()
		st := s.integ.Stats()
		result.Records = append(result.Records, Record{
			Step:            step,
			Time:            st.Time,
			Dt:              res.Dt,
			LoadScale:       load,
			TipDisplacement: rep.TipDisplacement,
			TipForce:        rep.TipForce,
			MaxDamage:       rep.MaxDamage(),
			BrokenBonds:     rep.BrokenBonds,
			Rejected:        st.Rejected,
		})
		for _, m := range s.metrics {
			m.Observe(step, st.Time, rep)
		}
		for _, o := range s.observers {
			o.OnStep(step, st.Time, u, rep)
		}
		if s.recorder != nil {
			s.recorder.RecordReport(rep)
		}
		s.logger.Debug("step",
			"step", step,
			"t", st.Time,
			"dt", res.Dt,
			"broken", rep.BrokenBonds,
			"tip", rep.TipDisplacement.String(),
		)

		if cfg.ValidateState && !u.IsValid() {
			return s.finish(result), s.fail(step, errInvalidState)
		}
	}

	s.logger.Info("run complete",
		"steps", result.StepsTaken,
		"rejected", s.integ.Stats().Rejected,
		"elapsed", time.Since(start),
	)
	return s.finish(result), nil
}

var errInvalidState = errors.New("displacement is NaN or Inf")

func (s *Simulator) fail(step int, err error) error {
	return &dynamo.SimulationError{Step: step, Time: s.integ.Stats().Time, Wrapped: err}
}

func (s *Simulator) finish(r *Result) *Result {
	r.Final = s.integ.Report()
	r.Displacement = s.integ.Displacement()
	r.Stats = s.integ.Stats()
	for _, m := range s.metrics {
		r.Metrics[m.Name()] = m.Value()
	}
	return r
}

// RunRealisations runs n independent realisations on the same integrator,
// resetting it between them.
func (s *Simulator) RunRealisations(ctx context.Context, cfg Config, n int) ([]*Result, error) {
	results := make([]*Result, 0, n)
	for r := 0; r < n; r++ {
		if r > 0 {
			if err := s.integ.Reset(cfg.Steps); err != nil {
				return results, err
			}
		}
		for _, o := range s.observers {
			if ro, ok := o.(RealisationObserver); ok {
				ro.SetRealisation(r)
			}
		}
		res, err := s.Run(ctx, cfg)
		if res != nil {
			res.Realisation = r
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
		s.logger.Info("realisation done", "realisation", r, "max_damage", res.Final.MaxDamage())
	}
	return results, nil
}

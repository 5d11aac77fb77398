package metrics

import (
	"time"

	"github.com/san-kum/peridyn/internal/dynamo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports step counters on its own registry. It satisfies
// sim.StepRecorder.
type Recorder struct {
	reg      *prometheus.Registry
	steps    prometheus.Counter
	rejected prometheus.Counter
	failed   prometheus.Counter
	duration prometheus.Histogram
	dt       prometheus.Gauge
	broken   prometheus.Gauge
	damage   prometheus.Gauge
}

func NewRecorder(scheme dynamo.Scheme) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"scheme": string(scheme)}

	return &Recorder{
		reg: reg,
		steps: f.NewCounter(prometheus.CounterOpts{
			Name:        "peridyn_steps_total",
			Help:        "Accepted integration steps",
			ConstLabels: labels,
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name:        "peridyn_rejected_steps_total",
			Help:        "Adaptive steps rejected by the error controller",
			ConstLabels: labels,
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Name:        "peridyn_failed_steps_total",
			Help:        "Steps that ended the run with an error",
			ConstLabels: labels,
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "peridyn_step_duration_seconds",
			Help:        "Wall time of one accepted step including rejections",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		dt: f.NewGauge(prometheus.GaugeOpts{
			Name:        "peridyn_step_size",
			Help:        "Step size of the last accepted step",
			ConstLabels: labels,
		}),
		broken: f.NewGauge(prometheus.GaugeOpts{
			Name:        "peridyn_broken_bonds",
			Help:        "Broken bonds at the last report",
			ConstLabels: labels,
		}),
		damage: f.NewGauge(prometheus.GaugeOpts{
			Name:        "peridyn_max_damage",
			Help:        "Largest nodal damage at the last report",
			ConstLabels: labels,
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) RecordStep(res dynamo.StepResult, rejected int, elapsed time.Duration) {
	r.rejected.Add(float64(rejected))
	if !res.Accepted {
		r.failed.Inc()
		return
	}
	r.steps.Inc()
	r.dt.Set(res.Dt)
	r.duration.Observe(elapsed.Seconds())
}

func (r *Recorder) RecordReport(rep dynamo.Report) {
	r.broken.Set(float64(rep.BrokenBonds))
	r.damage.Set(rep.MaxDamage())
}

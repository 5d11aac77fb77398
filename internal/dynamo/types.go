package dynamo

import (
	"fmt"
	"math"
	"strings"
)

// DOF is the number of degrees of freedom carried by every node.
const DOF = 3

// Field is a nodal vector field stored node-major: component d of node i
// lives at index i*DOF+d.
type Field []float64

func NewField(nnodes int) Field {
	return make(Field, nnodes*DOF)
}

func (f Field) Clone() Field {
	c := make(Field, len(f))
	copy(c, f)
	return c
}

func (f Field) NumNodes() int { return len(f) / DOF }

func (f Field) Node(i int) (x, y, z float64) {
	return f[i*DOF], f[i*DOF+1], f[i*DOF+2]
}

func (f Field) Zero() {
	for i := range f {
		f[i] = 0
	}
}

func (f Field) IsValid() bool {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NodeNorm is the Euclidean norm of the DOF components of node i.
func (f Field) NodeNorm(i int) float64 {
	x, y, z := f.Node(i)
	return math.Sqrt(x*x + y*y + z*z)
}

// Scheme selects an integration scheme.
type Scheme string

const (
	SchemeEuler           Scheme = "euler"
	SchemeEulerCromer     Scheme = "euler-cromer"
	SchemeVelocityVerlet  Scheme = "velocity-verlet"
	SchemeRK4             Scheme = "rk4"
	SchemeDormandPrince   Scheme = "dormand-prince"
	SchemeHeunEuler       Scheme = "heun-euler"
	SchemeStochasticEuler Scheme = "euler-stochastic"
	SchemeLumpedEuler     Scheme = "euler-lumped"
)

// Schemes lists every supported scheme in a stable order.
var Schemes = []Scheme{
	SchemeEuler,
	SchemeEulerCromer,
	SchemeVelocityVerlet,
	SchemeRK4,
	SchemeDormandPrince,
	SchemeHeunEuler,
	SchemeStochasticEuler,
	SchemeLumpedEuler,
}

func ParseScheme(name string) (Scheme, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range Schemes {
		if string(s) == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

// Adaptive reports whether the scheme controls its own time step.
func (s Scheme) Adaptive() bool {
	return s == SchemeDormandPrince || s == SchemeHeunEuler
}

// Dynamic reports whether the scheme carries velocity and uses density.
func (s Scheme) Dynamic() bool {
	return s == SchemeEulerCromer || s == SchemeVelocityVerlet
}

// Reduction selects how bond forces are folded into nodal forces.
type Reduction string

const (
	// ReductionInline sums a node's bonds inside the force kernel.
	ReductionInline Reduction = "inline"
	// ReductionBuffered writes per-bond forces and reduces them in a second pass.
	ReductionBuffered Reduction = "buffered"
)

// Config is the typed integration configuration handed to every scheme.
type Config struct {
	Scheme    Scheme
	Dt        float64
	Density   float64
	Damping   float64 // eta, dynamic schemes
	Dampening float64 // multiplier on force for first-order schemes

	ErrorMax      float64
	ErrorMin      float64
	GrowFactor    float64
	MaxRejections int
	MinDt         float64

	Reduction     Reduction
	DiagnosticDOF int
	Seed          int64
	Workers       int
}

func DefaultConfig() Config {
	return Config{
		Scheme:        SchemeEuler,
		Dt:            1e-3,
		Density:       1.0,
		Damping:       0.0,
		Dampening:     1.0,
		GrowFactor:    1.1,
		MaxRejections: 100,
		Reduction:     ReductionInline,
		DiagnosticDOF: 2,
	}
}

// DefaultErrorBounds returns the error_max / error_min pair used by an
// adaptive scheme when the caller leaves them unset.
func DefaultErrorBounds(s Scheme) (hi, lo float64) {
	switch s {
	case SchemeHeunEuler:
		return 1e-2, 1e-10
	default:
		return 1e-7, 1e-10
	}
}

func (c Config) Validate() error {
	if _, err := ParseScheme(string(c.Scheme)); err != nil {
		return err
	}
	if c.Dt <= 0 || math.IsNaN(c.Dt) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrParameterBounds, c.Dt)
	}
	if c.Scheme.Dynamic() && c.Density <= 0 {
		return fmt.Errorf("%w: density must be positive, got %g", ErrParameterBounds, c.Density)
	}
	if c.Scheme.Adaptive() {
		if c.ErrorMax <= 0 || c.ErrorMin < 0 || c.ErrorMin >= c.ErrorMax {
			return fmt.Errorf("%w: need 0 <= error_min < error_max, got [%g, %g]", ErrParameterBounds, c.ErrorMin, c.ErrorMax)
		}
		if c.GrowFactor <= 1 {
			return fmt.Errorf("%w: grow factor must exceed 1, got %g", ErrParameterBounds, c.GrowFactor)
		}
	}
	if c.Reduction != ReductionInline && c.Reduction != ReductionBuffered {
		return fmt.Errorf("%w: unknown reduction %q", ErrParameterBounds, c.Reduction)
	}
	if c.DiagnosticDOF < 0 || c.DiagnosticDOF >= DOF {
		return fmt.Errorf("%w: diagnostic dof %d", ErrParameterBounds, c.DiagnosticDOF)
	}
	return nil
}

// Diagnostic is a scalar that may be unavailable.
type Diagnostic struct {
	Value float64
	Valid bool
}

func NoData() Diagnostic             { return Diagnostic{} }
func Available(v float64) Diagnostic { return Diagnostic{Value: v, Valid: true} }
func (d Diagnostic) Or(fallback float64) float64 {
	if !d.Valid {
		return fallback
	}
	return d.Value
}

func (d Diagnostic) String() string {
	if !d.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.6e", d.Value)
}

// Report is the read-only output of an integrator at the current state.
type Report struct {
	Damage          []float64
	TipDisplacement Diagnostic
	TipForce        Diagnostic
	BrokenBonds     int
	Bonds           int
}

func (r Report) MaxDamage() float64 {
	m := 0.0
	for _, d := range r.Damage {
		if d > m {
			m = d
		}
	}
	return m
}

// StepResult describes one call to Integrator.Step.
type StepResult struct {
	Accepted bool
	Dt       float64 // step size attempted
	NextDt   float64 // step size for the next call
	Error    float64 // embedded error estimate, adaptive schemes only
}

// Stats accumulates per-run integrator counters.
type Stats struct {
	Steps       int
	Rejected    int
	Evaluations int
	Time        float64
	LastDt      float64
	NextDt      float64
}

// Integrator advances a peridynamic body in time. Implementations own all
// device buffers they were built with and are not safe for concurrent use.
type Integrator interface {
	Name() Scheme
	// Step advances exactly one dt, or rejects and shrinks dt for adaptive
	// schemes, in which case the state is unchanged.
	Step() (StepResult, error)
	// Report reads damage and tip diagnostics without changing state.
	Report() Report
	// Reset restores the initial state for a new realisation of the given
	// number of steps.
	Reset(steps int) error
	// IncrementLoad sets the force boundary-condition load scale.
	IncrementLoad(scale float64)
	Displacement() Field
	Stats() Stats
	Close()
}

type Metric interface {
	Name() string
	Observe(step int, t float64, r Report)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, t float64, u Field, r Report)
}

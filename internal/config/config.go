package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
	"github.com/san-kum/peridyn/internal/noise"
	"github.com/san-kum/peridyn/internal/sim"
)

const (
	DefaultElasticModulus  = 0.05
	DefaultHorizon         = 0.1
	DefaultCriticalStretch = 0.005
	DefaultBoundaryWidth   = 1.5
	DefaultSteps           = 1000
	DefaultWriteInterval   = 100
	DefaultOutputDir       = "output"
	DefaultNoiseJitter     = 1e-6
)

// Boundary protocols.
const (
	ProtocolNone       = "none"
	ProtocolTension    = "tension"
	ProtocolCantilever = "cantilever"
)

type Config struct {
	Preset      string            `yaml:"preset"`
	Mesh        MeshConfig        `yaml:"mesh"`
	Material    MaterialConfig    `yaml:"material"`
	Crack       CrackConfig       `yaml:"crack"`
	Boundary    BoundaryConfig    `yaml:"boundary"`
	Integration IntegrationConfig `yaml:"integration"`
	Run         RunConfig         `yaml:"run"`
	Noise       NoiseConfig       `yaml:"noise"`
	Backend     BackendConfig     `yaml:"backend"`
	Output      OutputConfig      `yaml:"output"`
}

type MeshConfig struct {
	Nx      int        `yaml:"nx"`
	Ny      int        `yaml:"ny"`
	Nz      int        `yaml:"nz"`
	Spacing float64    `yaml:"spacing"`
	Origin  [3]float64 `yaml:"origin,flow"`
}

type MaterialConfig struct {
	ElasticModulus  float64 `yaml:"elastic_modulus"`
	Horizon         float64 `yaml:"horizon"`
	CriticalStretch float64 `yaml:"critical_stretch"`
	Density         float64 `yaml:"density"`
	Damping         float64 `yaml:"damping"`
}

// CrackConfig cuts bonds crossing the plane x = X for y in (Y0, Y1).
// An empty interval means no initial crack.
type CrackConfig struct {
	X  float64 `yaml:"x"`
	Y0 float64 `yaml:"y0"`
	Y1 float64 `yaml:"y1"`
}

func (c CrackConfig) Enabled() bool { return c.Y1 > c.Y0 }

// BoundaryConfig places the loading protocol on the two x-ends of the
// body, each Width horizons deep.
type BoundaryConfig struct {
	Protocol   string  `yaml:"protocol"`
	Width      float64 `yaml:"width"`
	RampRate   float64 `yaml:"ramp_rate"`   // end displacement per unit time, tension
	FixLateral bool    `yaml:"fix_lateral"` // hold y and z of both ends, tension
	Force      float64 `yaml:"force"`       // force per node at full load, cantilever
	ForceDOF   int     `yaml:"force_dof"`
}

type IntegrationConfig struct {
	Scheme        string  `yaml:"scheme"`
	Dt            float64 `yaml:"dt"`
	Dampening     float64 `yaml:"dampening"`
	ErrorMax      float64 `yaml:"error_max"`
	ErrorMin      float64 `yaml:"error_min"`
	GrowFactor    float64 `yaml:"grow_factor"`
	MinDt         float64 `yaml:"min_dt"`
	MaxRejections int     `yaml:"max_rejections"`
	Reduction     string  `yaml:"reduction"`
	DiagnosticDOF int     `yaml:"diagnostic_dof"`
	Seed          int64   `yaml:"seed"`
}

type RunConfig struct {
	Steps         int     `yaml:"steps"`
	WriteInterval int     `yaml:"write_interval"`
	LoadIncrement float64 `yaml:"load_increment"`
	LoadMax       float64 `yaml:"load_max"`
	Realisations  int     `yaml:"realisations"`
}

type NoiseConfig struct {
	LengthScale float64 `yaml:"length_scale"`
	Variance    float64 `yaml:"variance"`
	Amplitude   float64 `yaml:"amplitude"`
	Jitter      float64 `yaml:"jitter"`
}

type BackendConfig struct {
	Name    string `yaml:"name"`
	Device  string `yaml:"device"`
	Workers int    `yaml:"workers"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	VTK bool   `yaml:"vtk"`
}

func DefaultConfig() *Config {
	d := dynamo.DefaultConfig()
	return &Config{
		Preset: "custom",
		Mesh: MeshConfig{
			Nx: 20, Ny: 20, Nz: 1,
			Spacing: 0.05,
		},
		Material: MaterialConfig{
			ElasticModulus:  DefaultElasticModulus,
			Horizon:         DefaultHorizon,
			CriticalStretch: DefaultCriticalStretch,
			Density:         d.Density,
			Damping:         d.Damping,
		},
		Boundary: BoundaryConfig{
			Protocol: ProtocolNone,
			Width:    DefaultBoundaryWidth,
		},
		Integration: IntegrationConfig{
			Scheme:        string(d.Scheme),
			Dt:            d.Dt,
			Dampening:     d.Dampening,
			GrowFactor:    d.GrowFactor,
			MaxRejections: d.MaxRejections,
			Reduction:     string(d.Reduction),
			DiagnosticDOF: d.DiagnosticDOF,
		},
		Run: RunConfig{
			Steps:         DefaultSteps,
			WriteInterval: DefaultWriteInterval,
			Realisations:  1,
		},
		Noise: NoiseConfig{Jitter: DefaultNoiseJitter},
		Backend: BackendConfig{
			Name: "cpu",
		},
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Dynamo converts the integration block to the typed integrator config.
func (c *Config) Dynamo() (dynamo.Config, error) {
	scheme, err := dynamo.ParseScheme(c.Integration.Scheme)
	if err != nil {
		return dynamo.Config{}, err
	}
	out := dynamo.Config{
		Scheme:        scheme,
		Dt:            c.Integration.Dt,
		Density:       c.Material.Density,
		Damping:       c.Material.Damping,
		Dampening:     c.Integration.Dampening,
		ErrorMax:      c.Integration.ErrorMax,
		ErrorMin:      c.Integration.ErrorMin,
		GrowFactor:    c.Integration.GrowFactor,
		MaxRejections: c.Integration.MaxRejections,
		MinDt:         c.Integration.MinDt,
		Reduction:     dynamo.Reduction(c.Integration.Reduction),
		DiagnosticDOF: c.Integration.DiagnosticDOF,
		Seed:          c.Integration.Seed,
		Workers:       c.Backend.Workers,
	}
	if scheme.Adaptive() && out.ErrorMax == 0 {
		out.ErrorMax, out.ErrorMin = dynamo.DefaultErrorBounds(scheme)
	}
	return out, out.Validate()
}

// Sim converts the run block to the driver config.
func (c *Config) Sim() sim.Config {
	cfg := sim.Config{
		Steps:         c.Run.Steps,
		WriteInterval: c.Run.WriteInterval,
		MaxRejections: c.Integration.MaxRejections,
		ValidateState: true,
	}
	if c.Run.LoadIncrement > 0 {
		cfg.Load = sim.LinearRamp{Increment: c.Run.LoadIncrement, Max: c.Run.LoadMax}
	}
	return cfg
}

func (c *Config) Compute(logger *slog.Logger) compute.Options {
	return compute.Options{
		Backend:   c.Backend.Name,
		Device:    c.Backend.Device,
		Workers:   c.Backend.Workers,
		Reduction: dynamo.Reduction(c.Integration.Reduction),
		Logger:    logger,
	}
}

// BuildModel lays out the mesh, cuts the crack and applies the boundary
// protocol.
func (c *Config) BuildModel() (*model.Model, error) {
	grid := model.Grid{
		Nx:      c.Mesh.Nx,
		Ny:      c.Mesh.Ny,
		Nz:      c.Mesh.Nz,
		Spacing: c.Mesh.Spacing,
		Origin:  c.Mesh.Origin,
	}
	mat := model.Material{
		ElasticModulus:  c.Material.ElasticModulus,
		Horizon:         c.Material.Horizon,
		CriticalStretch: c.Material.CriticalStretch,
	}
	var crack model.CrackFunc
	if c.Crack.Enabled() {
		crack = model.StraightCrack(c.Crack.X, c.Crack.Y0, c.Crack.Y1)
	}

	m, err := model.Build(grid, mat, crack)
	if err != nil {
		return nil, err
	}
	if err := c.applyBoundary(m); err != nil {
		return nil, err
	}
	return m, nil
}

func extent(m *model.Model) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < m.NumNodes(); i++ {
		x := m.Coord(i)[0]
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

func (c *Config) applyBoundary(m *model.Model) error {
	b := c.Boundary
	if b.Protocol == "" || b.Protocol == ProtocolNone {
		return nil
	}

	depth := b.Width * c.Material.Horizon
	xlo, xhi := extent(m)
	lhs := m.Select(func(x [3]float64) bool { return x[0] < xlo+depth })
	rhs := m.Select(func(x [3]float64) bool { return x[0] > xhi-depth })
	if len(lhs) == 0 || len(rhs) == 0 {
		return fmt.Errorf("%w: boundary width %g selects no nodes", dynamo.ErrParameterBounds, b.Width)
	}

	switch b.Protocol {
	case ProtocolTension:
		m.SetDisplacementBC(lhs, 0, model.BCRamp, -b.RampRate)
		m.SetDisplacementBC(rhs, 0, model.BCRamp, b.RampRate)
		if b.FixLateral {
			for _, side := range [][]int{lhs, rhs} {
				m.SetDisplacementBC(side, 1, model.BCFixed, 0)
				m.SetDisplacementBC(side, 2, model.BCFixed, 0)
			}
		}
	case ProtocolCantilever:
		if b.ForceDOF < 0 || b.ForceDOF >= dynamo.DOF {
			return fmt.Errorf("%w: force dof %d", dynamo.ErrParameterBounds, b.ForceDOF)
		}
		for d := 0; d < dynamo.DOF; d++ {
			m.SetDisplacementBC(lhs, d, model.BCFixed, 0)
		}
		m.SetForceBC(rhs, b.ForceDOF, b.Force)
	default:
		return fmt.Errorf("%w: unknown boundary protocol %q", dynamo.ErrParameterBounds, b.Protocol)
	}
	m.SetTip(rhs)
	return nil
}

// NoiseSource builds the correlated noise generator for the stochastic
// scheme.
func (c *Config) NoiseSource(m *model.Model) (*noise.Generator, error) {
	n := c.Noise
	if n.LengthScale <= 0 || n.Variance <= 0 {
		return nil, fmt.Errorf("%w: noise needs positive length scale and variance", dynamo.ErrParameterBounds)
	}
	k := noise.SquaredExponential(m.Coords, n.LengthScale, n.Variance, n.Jitter)
	return noise.New(k, n.Amplitude)
}

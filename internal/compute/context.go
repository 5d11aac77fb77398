package compute

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/peridyn/internal/bonds"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
)

type Options struct {
	Backend   string // cpu, occa or auto
	Device    string // OCCA device properties
	Workers   int
	Reduction dynamo.Reduction
	Logger    *slog.Logger
	// NewBackend, when set, builds the backend instead of selecting one
	// by name.
	NewBackend func(b *Buffers) (Backend, error)
}

// Context is the exclusive device state of one integrator.
type Context struct {
	buf      *Buffers
	family   *bonds.Family
	pristine []uint8
	backend  Backend
	logger   *slog.Logger

	tip       []int
	hasForce  bool
	loadScale float64
	reduction dynamo.Reduction

	bondForce []float64
	damage    []float64
	closed    bool
}

// NewContext validates m and copies every buffer the kernels use.
// Validation failures return before any backend is opened.
func NewContext(m *model.Model, opts Options) (*Context, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "compute")

	family := m.Family.Clone()
	neighbors, lengths, flags := family.Raw()
	n, maxN := m.NumNodes(), family.MaxNeighbors()

	b := &Buffers{
		NNodes:          n,
		MaxNeighbors:    maxN,
		Coords:          append([]float64(nil), m.Coords...),
		Volumes:         append([]float64(nil), m.Volumes...),
		Neighbors:       neighbors,
		Lengths:         lengths,
		Flags:           flags,
		RefLength:       make([]float64, n*maxN),
		Stiffness:       m.Stiffness.Expand(n, maxN),
		CriticalStretch: m.CriticalStretch.Expand(n, maxN),
		DispTypes:       append([]model.BCKind(nil), m.DispBCTypes...),
		DispValues:      append([]float64(nil), m.DispBCValues...),
		ForceTypes:      append([]model.ForceKind(nil), m.ForceBCTypes...),
		ForceValues:     append([]float64(nil), m.ForceBCValues...),
	}
	for i := 0; i < n; i++ {
		for k, j := range family.Neighbors(i) {
			dx := b.Coords[int(j)*3] - b.Coords[i*3]
			dy := b.Coords[int(j)*3+1] - b.Coords[i*3+1]
			dz := b.Coords[int(j)*3+2] - b.Coords[i*3+2]
			b.RefLength[i*maxN+k] = math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
	}

	var backend Backend
	var err error
	if opts.NewBackend != nil {
		if backend, err = opts.NewBackend(b); err != nil {
			return nil, &dynamo.SetupError{Resource: "backend", Err: err}
		}
	} else if backend, err = SelectBackend(opts.Backend, opts.Device, b, opts.Workers, logger); err != nil {
		return nil, err
	}
	logger.Debug("context ready", "backend", backend.Name(), "nodes", n, "bonds", family.Bonds())

	c := &Context{
		buf:       b,
		family:    family,
		pristine:  append([]uint8(nil), flags...),
		backend:   backend,
		logger:    logger,
		hasForce:  m.NumForceBCNodes() > 0,
		loadScale: 1.0,
		reduction: opts.Reduction,
		damage:    make([]float64, n),
	}
	if c.reduction == "" {
		c.reduction = dynamo.ReductionInline
	}
	for i, t := range m.Tip {
		if t {
			c.tip = append(c.tip, i)
		}
	}
	return c, nil
}

func (c *Context) NumNodes() int               { return c.buf.NNodes }
func (c *Context) Family() *bonds.Family       { return c.family }
func (c *Context) BackendName() string         { return c.backend.Name() }
func (c *Context) Logger() *slog.Logger        { return c.logger }
func (c *Context) LoadScale() float64          { return c.loadScale }
func (c *Context) HasForceBC() bool            { return c.hasForce }
func (c *Context) Reduction() dynamo.Reduction { return c.reduction }

func (c *Context) SetReduction(r dynamo.Reduction) { c.reduction = r }

// SetLoadScale changes the multiplier on force BC values. It has no
// effect on a body without force BCs.
func (c *Context) SetLoadScale(scale float64) {
	if !c.hasForce {
		return
	}
	c.loadScale = scale
}

func (c *Context) bondBuffer() []float64 {
	if c.bondForce == nil {
		c.bondForce = make([]float64, c.buf.NNodes*c.buf.MaxNeighbors*dynamo.DOF)
	}
	return c.bondForce
}

// Forces writes the net nodal force density at u into f. With check set,
// bonds past their critical stretch break first and contribute nothing.
func (c *Context) Forces(u, f dynamo.Field, check bool) {
	if c.reduction == dynamo.ReductionBuffered {
		bf := c.bondBuffer()
		c.backend.BondForces(u, bf, check)
		c.backend.Reduce(bf, f, c.loadScale)
		return
	}
	c.backend.NodeForces(u, f, check, c.loadScale)
}

// LumpedEuler evaluates bond forces with the failure test and applies a
// fused reduce and Euler update to u at the new time t.
func (c *Context) LumpedEuler(u dynamo.Field, dt, dampening, t float64) {
	bf := c.bondBuffer()
	c.backend.BondForces(u, bf, true)
	c.backend.Lumped(bf, u, dt, dampening, c.loadScale, t)
}

func (c *Context) CheckBonds(u dynamo.Field) { c.backend.CheckBonds(u) }

// Err reports a failed kernel dispatch. Fields written since the failure
// are not meaningful.
func (c *Context) Err() error {
	if err := c.backend.Err(); err != nil {
		return fmt.Errorf("%w: %w", dynamo.ErrDevice, err)
	}
	return nil
}

// ApplyBC overrides displacement and velocity dofs that carry a
// displacement BC at time t. v may be nil.
func (c *Context) ApplyBC(u, v dynamo.Field, t float64) {
	b := c.buf
	for idx := range b.DispTypes {
		if val, held := b.displacementBC(idx, t); held {
			u[idx] = val
			if v != nil {
				v[idx], _ = b.velocityBC(idx)
			}
		}
	}
}

// Held reports whether dof idx carries a displacement BC.
func (c *Context) Held(idx int) bool { return c.buf.DispTypes[idx] != model.BCFree }

// Damage returns the per-node damage. The slice is reused between calls.
func (c *Context) Damage() []float64 {
	c.backend.Damage(c.damage)
	return c.damage
}

// TipMean averages component dof of f over the tip nodes.
func (c *Context) TipMean(f dynamo.Field, dof int) dynamo.Diagnostic {
	if len(c.tip) == 0 || f == nil {
		return dynamo.NoData()
	}
	sum := 0.0
	for _, i := range c.tip {
		sum += f[i*dynamo.DOF+dof]
	}
	return dynamo.Available(sum / float64(len(c.tip)))
}

// RestoreBonds returns every bond to its state at construction.
func (c *Context) RestoreBonds() {
	copy(c.buf.Flags, c.pristine)
	c.backend.SyncFlags()
}

func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.backend.Cleanup()
}

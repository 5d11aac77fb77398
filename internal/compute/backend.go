package compute

import (
	"log/slog"
	"math"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
)

// Backend executes the per-step kernels over a context's buffers.
type Backend interface {
	Name() string
	Available() bool
	// NodeForces writes the net force density of every node at displacement
	// u into f, summing bonds inline. With check set, bonds past their
	// critical stretch are broken and contribute nothing.
	NodeForces(u, f dynamo.Field, check bool, loadScale float64)
	// BondForces writes the force of every bond slot into bf, which holds
	// nnodes*maxNeighbors*DOF values. Unused and broken slots get zero.
	BondForces(u dynamo.Field, bf []float64, check bool)
	// Reduce folds bf into nodal forces and adds the scaled force BCs.
	Reduce(bf []float64, f dynamo.Field, loadScale float64)
	// Lumped folds bf and applies the Euler update and displacement BCs to
	// u in the same pass.
	Lumped(bf []float64, u dynamo.Field, dt, dampening, loadScale, t float64)
	// CheckBonds breaks every bond past its critical stretch at u.
	CheckBonds(u dynamo.Field)
	Damage(out []float64)
	// SyncFlags pushes host bond flags to the device after a host write.
	SyncFlags()
	// Err returns the first failed kernel dispatch. Once it is set the
	// remaining dispatches are skipped.
	Err() error
	Cleanup()
}

// Buffers are the arrays the kernels read. Flags aliases the context's
// bond family and is the only array kernels write.
type Buffers struct {
	NNodes       int
	MaxNeighbors int

	Coords  []float64
	Volumes []float64

	Neighbors []int32
	Lengths   []int32
	Flags     []uint8

	RefLength       []float64 // per slot
	Stiffness       []float64 // per slot
	CriticalStretch []float64 // per slot

	DispTypes   []model.BCKind
	DispValues  []float64
	ForceTypes  []model.ForceKind
	ForceValues []float64
}

// EulerUpdate is the first-order displacement update shared by every
// Euler-shaped path so they agree bit for bit.
func EulerUpdate(u, f, dt, dampening float64) float64 {
	return u + dt*f*dampening
}

// bondForce computes the contribution of slot k of node i at displacement
// u. Positive stretch pulls i toward its neighbor. ok is false when the
// slot is unused or broken. stretch is returned for the failure test.
func (b *Buffers) bondForce(u dynamo.Field, i, k int) (fx, fy, fz, stretch float64, ok bool) {
	slot := i*b.MaxNeighbors + k
	if b.Flags[slot] == 0 {
		return 0, 0, 0, 0, false
	}
	j := int(b.Neighbors[slot])

	yx := (b.Coords[j*3] - b.Coords[i*3]) + (u[j*3] - u[i*3])
	yy := (b.Coords[j*3+1] - b.Coords[i*3+1]) + (u[j*3+1] - u[i*3+1])
	yz := (b.Coords[j*3+2] - b.Coords[i*3+2]) + (u[j*3+2] - u[i*3+2])
	l := math.Sqrt(yx*yx + yy*yy + yz*yz)
	l0 := b.RefLength[slot]

	stretch = (l - l0) / l0
	if l == 0 {
		return 0, 0, 0, stretch, true
	}
	scale := b.Stiffness[slot] * stretch * b.Volumes[j] / l
	return scale * yx, scale * yy, scale * yz, stretch, true
}

func (b *Buffers) exceeds(i, k int, stretch float64) bool {
	return math.Abs(stretch) > b.CriticalStretch[i*b.MaxNeighbors+k]
}

// displacementBC returns the prescribed value of dof idx at time t.
func (b *Buffers) displacementBC(idx int, t float64) (float64, bool) {
	switch b.DispTypes[idx] {
	case model.BCFixed:
		return b.DispValues[idx], true
	case model.BCRamp:
		return b.DispValues[idx] * t, true
	}
	return 0, false
}

func (b *Buffers) velocityBC(idx int) (float64, bool) {
	switch b.DispTypes[idx] {
	case model.BCFixed:
		return 0, true
	case model.BCRamp:
		return b.DispValues[idx], true
	}
	return 0, false
}

func (b *Buffers) forceBC(idx int, loadScale float64) float64 {
	if b.ForceTypes[idx] == model.ForceLoaded {
		return b.ForceValues[idx] * loadScale
	}
	return 0
}

// SelectBackend returns the named backend over b. "auto" or "" prefers
// OCCA when it was compiled in and a device opens, else the CPU.
func SelectBackend(name, device string, b *Buffers, workers int, logger *slog.Logger) (Backend, error) {
	switch name {
	case "", "auto":
		occa, err := NewOCCABackend(device, b, logger)
		if err == nil && occa.Available() {
			return occa, nil
		}
		if err != nil {
			logger.Debug("occa unavailable, using cpu", "err", err)
		}
		return NewCPUBackend(b, workers), nil
	case "cpu":
		return NewCPUBackend(b, workers), nil
	case "occa":
		occa, err := NewOCCABackend(device, b, logger)
		if err != nil {
			return nil, &dynamo.SetupError{Resource: "occa device", Err: err}
		}
		if !occa.Available() {
			return nil, &dynamo.SetupError{Resource: "occa device", Err: errNotCompiled}
		}
		return occa, nil
	}
	return nil, &dynamo.SetupError{Resource: "backend " + name, Err: errUnknownBackend}
}

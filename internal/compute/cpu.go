package compute

import (
	"errors"
	"runtime"

	"github.com/san-kum/peridyn/internal/dynamo"
)

var (
	errNotCompiled    = errors.New("binary built without the occa tag")
	errUnknownBackend = errors.New("unknown backend")
)

// nodes per goroutine below which the kernels run serially
const minChunk = 64

type CPUBackend struct {
	b       *Buffers
	workers int
}

func NewCPUBackend(b *Buffers, workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{b: b, workers: workers}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) SyncFlags()      {}
func (c *CPUBackend) Err() error      { return nil }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) NodeForces(u, f dynamo.Field, check bool, loadScale float64) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			var sx, sy, sz float64
			for k := 0; k < int(b.Lengths[i]); k++ {
				fx, fy, fz, s, ok := b.bondForce(u, i, k)
				if !ok {
					continue
				}
				if check && b.exceeds(i, k, s) {
					b.Flags[i*b.MaxNeighbors+k] = 0
					continue
				}
				sx += fx
				sy += fy
				sz += fz
			}
			f[i*3] = sx + b.forceBC(i*3, loadScale)
			f[i*3+1] = sy + b.forceBC(i*3+1, loadScale)
			f[i*3+2] = sz + b.forceBC(i*3+2, loadScale)
		}
	})
}

func (c *CPUBackend) BondForces(u dynamo.Field, bf []float64, check bool) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for k := 0; k < b.MaxNeighbors; k++ {
				slot := (i*b.MaxNeighbors + k) * 3
				bf[slot], bf[slot+1], bf[slot+2] = 0, 0, 0
				if k >= int(b.Lengths[i]) {
					continue
				}
				fx, fy, fz, s, ok := b.bondForce(u, i, k)
				if !ok {
					continue
				}
				if check && b.exceeds(i, k, s) {
					b.Flags[i*b.MaxNeighbors+k] = 0
					continue
				}
				bf[slot], bf[slot+1], bf[slot+2] = fx, fy, fz
			}
		}
	})
}

// sum folds the slots of node i, dof d, in slot order. Slots past the
// node's length are skipped so the sum matches the inline kernel.
func (c *CPUBackend) sum(bf []float64, i, d int) float64 {
	b := c.b
	s := 0.0
	row := i * b.MaxNeighbors
	for k := 0; k < int(b.Lengths[i]); k++ {
		if b.Flags[row+k] == 0 {
			continue
		}
		s += bf[(row+k)*3+d]
	}
	return s
}

func (c *CPUBackend) Reduce(bf []float64, f dynamo.Field, loadScale float64) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for d := 0; d < dynamo.DOF; d++ {
				f[i*3+d] = c.sum(bf, i, d) + b.forceBC(i*3+d, loadScale)
			}
		}
	})
}

func (c *CPUBackend) Lumped(bf []float64, u dynamo.Field, dt, dampening, loadScale, t float64) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for d := 0; d < dynamo.DOF; d++ {
				idx := i*3 + d
				if v, held := b.displacementBC(idx, t); held {
					u[idx] = v
					continue
				}
				f := c.sum(bf, i, d) + b.forceBC(idx, loadScale)
				u[idx] = EulerUpdate(u[idx], f, dt, dampening)
			}
		}
	})
}

func (c *CPUBackend) CheckBonds(u dynamo.Field) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for k := 0; k < int(b.Lengths[i]); k++ {
				_, _, _, s, ok := b.bondForce(u, i, k)
				if ok && b.exceeds(i, k, s) {
					b.Flags[i*b.MaxNeighbors+k] = 0
				}
			}
		}
	})
}

func (c *CPUBackend) Damage(out []float64) {
	b := c.b
	dynamo.ParallelFor(b.NNodes, minChunk, c.workers, func(start, end int) {
		for i := start; i < end; i++ {
			l := int(b.Lengths[i])
			if l == 0 {
				out[i] = 0
				continue
			}
			active := 0
			row := i * b.MaxNeighbors
			for k := 0; k < l; k++ {
				active += int(b.Flags[row+k])
			}
			d := 1 - float64(active)/float64(l)
			if d < 0 {
				d = 0
			}
			out[i] = d
		}
	})
}

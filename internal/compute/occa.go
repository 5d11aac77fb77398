//go:build occa

package compute

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/notargets/gocca"

	"github.com/san-kum/peridyn/internal/dynamo"
)

const okl = `
@kernel void bondForces(const int nnodes, const int maxNeighbors, const int check,
                        const double *coords, const double *u, const double *volumes,
                        const int *neighbors, const int *lengths, char *flags,
                        const double *refLength, const double *stiffness,
                        const double *critical, double *bf) {
  for (int i = 0; i < nnodes; ++i; @tile(64, @outer, @inner)) {
    for (int k = 0; k < maxNeighbors; ++k) {
      const int slot = i*maxNeighbors + k;
      bf[slot*3] = 0; bf[slot*3+1] = 0; bf[slot*3+2] = 0;
      if (k >= lengths[i] || flags[slot] == 0) continue;
      const int j = neighbors[slot];
      const double yx = (coords[j*3] - coords[i*3]) + (u[j*3] - u[i*3]);
      const double yy = (coords[j*3+1] - coords[i*3+1]) + (u[j*3+1] - u[i*3+1]);
      const double yz = (coords[j*3+2] - coords[i*3+2]) + (u[j*3+2] - u[i*3+2]);
      const double l = sqrt(yx*yx + yy*yy + yz*yz);
      const double s = (l - refLength[slot]) / refLength[slot];
      if (check && fabs(s) > critical[slot]) { flags[slot] = 0; continue; }
      if (l == 0) continue;
      const double c = stiffness[slot] * s * volumes[j] / l;
      bf[slot*3] = c*yx; bf[slot*3+1] = c*yy; bf[slot*3+2] = c*yz;
    }
  }
}

@kernel void reduceForces(const int nnodes, const int maxNeighbors, const double loadScale,
                          const int *lengths, const char *flags, const double *bf,
                          const int *forceTypes, const double *forceValues, double *f) {
  for (int idx = 0; idx < 3*nnodes; ++idx; @tile(64, @outer, @inner)) {
    const int i = idx / 3;
    const int d = idx - 3*i;
    double s = 0;
    for (int k = 0; k < lengths[i]; ++k) {
      const int slot = i*maxNeighbors + k;
      if (flags[slot]) s += bf[slot*3+d];
    }
    if (forceTypes[idx]) s += forceValues[idx] * loadScale;
    f[idx] = s;
  }
}

@kernel void lumpedEuler(const int nnodes, const int maxNeighbors, const double loadScale,
                         const double dt, const double dampening, const double t,
                         const int *lengths, const char *flags, const double *bf,
                         const int *forceTypes, const double *forceValues,
                         const int *dispTypes, const double *dispValues, double *u) {
  for (int idx = 0; idx < 3*nnodes; ++idx; @tile(64, @outer, @inner)) {
    if (dispTypes[idx] == 1) { u[idx] = dispValues[idx]; continue; }
    if (dispTypes[idx] == 2) { u[idx] = dispValues[idx] * t; continue; }
    const int i = idx / 3;
    const int d = idx - 3*i;
    double s = 0;
    for (int k = 0; k < lengths[i]; ++k) {
      const int slot = i*maxNeighbors + k;
      if (flags[slot]) s += bf[slot*3+d];
    }
    if (forceTypes[idx]) s += forceValues[idx] * loadScale;
    u[idx] = u[idx] + dt*s*dampening;
  }
}

@kernel void checkBonds(const int nnodes, const int maxNeighbors,
                        const double *coords, const double *u,
                        const int *neighbors, const int *lengths, char *flags,
                        const double *refLength, const double *critical) {
  for (int i = 0; i < nnodes; ++i; @tile(64, @outer, @inner)) {
    for (int k = 0; k < lengths[i]; ++k) {
      const int slot = i*maxNeighbors + k;
      if (flags[slot] == 0) continue;
      const int j = neighbors[slot];
      const double yx = (coords[j*3] - coords[i*3]) + (u[j*3] - u[i*3]);
      const double yy = (coords[j*3+1] - coords[i*3+1]) + (u[j*3+1] - u[i*3+1]);
      const double yz = (coords[j*3+2] - coords[i*3+2]) + (u[j*3+2] - u[i*3+2]);
      const double l = sqrt(yx*yx + yy*yy + yz*yz);
      const double s = (l - refLength[slot]) / refLength[slot];
      if (fabs(s) > critical[slot]) flags[slot] = 0;
    }
  }
}

@kernel void damage(const int nnodes, const int maxNeighbors,
                    const int *lengths, const char *flags, double *out) {
  for (int i = 0; i < nnodes; ++i; @tile(64, @outer, @inner)) {
    const int l = lengths[i];
    int active = 0;
    for (int k = 0; k < l; ++k) active += flags[i*maxNeighbors + k];
    out[i] = l == 0 ? 0.0 : 1.0 - (double)active / (double)l;
  }
}
`

var kernelNames = []string{"bondForces", "reduceForces", "lumpedEuler", "checkBonds", "damage"}

// OCCABackend runs the kernels on an OCCA device. State stays on the
// host between calls; each call uploads its inputs and reads back what the
// kernel wrote.
type OCCABackend struct {
	b      *Buffers
	device *gocca.OCCADevice

	kernels map[string]*gocca.OCCAKernel
	mem     map[string]*gocca.OCCAMemory

	nnodes, maxNeighbors int32
	err                  error
}

// NewOCCABackend opens device (OCCA JSON properties, Serial when empty),
// uploads the static buffers and builds the kernels.
func NewOCCABackend(device string, b *Buffers, logger *slog.Logger) (*OCCABackend, error) {
	if device == "" {
		device = `{"mode": "Serial"}`
	}
	dev, err := gocca.NewDevice(device)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", device, err)
	}
	o := &OCCABackend{
		b:            b,
		device:       dev,
		kernels:      make(map[string]*gocca.OCCAKernel),
		mem:          make(map[string]*gocca.OCCAMemory),
		nnodes:       int32(b.NNodes),
		maxNeighbors: int32(b.MaxNeighbors),
	}
	logger.Debug("occa device", "mode", dev.Mode(), "nodes", b.NNodes, "max_neighbors", b.MaxNeighbors)

	forceTypes := make([]int32, len(b.ForceTypes))
	for i, t := range b.ForceTypes {
		forceTypes[i] = int32(t)
	}
	dispTypes := make([]int32, len(b.DispTypes))
	for i, t := range b.DispTypes {
		dispTypes[i] = int32(t)
	}
	slots := b.NNodes * b.MaxNeighbors

	o.float64s("coords", b.Coords)
	o.float64s("volumes", b.Volumes)
	o.float64s("refLength", b.RefLength)
	o.float64s("stiffness", b.Stiffness)
	o.float64s("critical", b.CriticalStretch)
	o.float64s("forceValues", b.ForceValues)
	o.float64s("dispValues", b.DispValues)
	o.int32s("neighbors", b.Neighbors)
	o.int32s("lengths", b.Lengths)
	o.int32s("forceTypes", forceTypes)
	o.int32s("dispTypes", dispTypes)
	if slots > 0 {
		o.mem["flags"] = dev.Malloc(int64(slots), unsafe.Pointer(&b.Flags[0]), nil)
	} else {
		o.mem["flags"] = dev.Malloc(1, nil, nil)
	}
	o.mem["u"] = dev.Malloc(int64(b.NNodes*dynamo.DOF*8), nil, nil)
	o.mem["f"] = dev.Malloc(int64(b.NNodes*dynamo.DOF*8), nil, nil)
	o.mem["bf"] = dev.Malloc(int64(max(slots, 1)*dynamo.DOF*8), nil, nil)
	o.mem["damage"] = dev.Malloc(int64(b.NNodes*8), nil, nil)

	for _, name := range kernelNames {
		k, err := dev.BuildKernelFromString(okl, name, nil)
		if err != nil {
			o.Cleanup()
			return nil, fmt.Errorf("build kernel %s: %w", name, err)
		}
		o.kernels[name] = k
	}
	return o, nil
}

func (o *OCCABackend) float64s(name string, data []float64) {
	if len(data) == 0 {
		data = []float64{0}
	}
	o.mem[name] = o.device.Malloc(int64(len(data)*8), unsafe.Pointer(&data[0]), nil)
}

func (o *OCCABackend) int32s(name string, data []int32) {
	if len(data) == 0 {
		data = []int32{0}
	}
	o.mem[name] = o.device.Malloc(int64(len(data)*4), unsafe.Pointer(&data[0]), nil)
}

func (o *OCCABackend) Name() string    { return "occa (" + o.device.Mode() + ")" }
func (o *OCCABackend) Available() bool { return true }

func (o *OCCABackend) Err() error { return o.err }

func (o *OCCABackend) run(name string, args ...interface{}) {
	if o.err != nil {
		return
	}
	if err := o.kernels[name].RunWithArgs(args...); err != nil {
		o.err = fmt.Errorf("occa kernel %s: %w", name, err)
		return
	}
	o.device.Finish()
}

func (o *OCCABackend) upload(name string, data []float64) {
	o.mem[name].CopyFrom(unsafe.Pointer(&data[0]), int64(len(data)*8))
}

func (o *OCCABackend) download(name string, data []float64) {
	o.mem[name].CopyTo(unsafe.Pointer(&data[0]), int64(len(data)*8))
}

func (o *OCCABackend) pullFlags() {
	if len(o.b.Flags) > 0 {
		o.mem["flags"].CopyTo(unsafe.Pointer(&o.b.Flags[0]), int64(len(o.b.Flags)))
	}
}

func (o *OCCABackend) SyncFlags() {
	if len(o.b.Flags) > 0 {
		o.mem["flags"].CopyFrom(unsafe.Pointer(&o.b.Flags[0]), int64(len(o.b.Flags)))
	}
}

func (o *OCCABackend) bondForces(u dynamo.Field, check bool) {
	var c int32
	if check {
		c = 1
	}
	o.upload("u", u)
	m := o.mem
	o.run("bondForces", o.nnodes, o.maxNeighbors, c,
		m["coords"], m["u"], m["volumes"], m["neighbors"], m["lengths"], m["flags"],
		m["refLength"], m["stiffness"], m["critical"], m["bf"])
	if check {
		o.pullFlags()
	}
}

func (o *OCCABackend) NodeForces(u, f dynamo.Field, check bool, loadScale float64) {
	o.bondForces(u, check)
	m := o.mem
	o.run("reduceForces", o.nnodes, o.maxNeighbors, loadScale,
		m["lengths"], m["flags"], m["bf"], m["forceTypes"], m["forceValues"], m["f"])
	o.download("f", f)
}

func (o *OCCABackend) BondForces(u dynamo.Field, bf []float64, check bool) {
	o.bondForces(u, check)
	if len(bf) > 0 {
		o.download("bf", bf)
	}
}

func (o *OCCABackend) Reduce(bf []float64, f dynamo.Field, loadScale float64) {
	if len(bf) > 0 {
		o.upload("bf", bf)
	}
	m := o.mem
	o.run("reduceForces", o.nnodes, o.maxNeighbors, loadScale,
		m["lengths"], m["flags"], m["bf"], m["forceTypes"], m["forceValues"], m["f"])
	o.download("f", f)
}

func (o *OCCABackend) Lumped(bf []float64, u dynamo.Field, dt, dampening, loadScale, t float64) {
	if len(bf) > 0 {
		o.upload("bf", bf)
	}
	o.upload("u", u)
	m := o.mem
	o.run("lumpedEuler", o.nnodes, o.maxNeighbors, loadScale, dt, dampening, t,
		m["lengths"], m["flags"], m["bf"], m["forceTypes"], m["forceValues"],
		m["dispTypes"], m["dispValues"], m["u"])
	o.download("u", u)
}

func (o *OCCABackend) CheckBonds(u dynamo.Field) {
	o.upload("u", u)
	m := o.mem
	o.run("checkBonds", o.nnodes, o.maxNeighbors,
		m["coords"], m["u"], m["neighbors"], m["lengths"], m["flags"],
		m["refLength"], m["critical"])
	o.pullFlags()
}

func (o *OCCABackend) Damage(out []float64) {
	m := o.mem
	o.run("damage", o.nnodes, o.maxNeighbors, m["lengths"], m["flags"], m["damage"])
	o.download("damage", out)
}

func (o *OCCABackend) Cleanup() {
	for _, k := range o.kernels {
		k.Free()
	}
	for _, m := range o.mem {
		m.Free()
	}
	o.kernels = map[string]*gocca.OCCAKernel{}
	o.mem = map[string]*gocca.OCCAMemory{}
	if o.device != nil {
		o.device.Free()
		o.device = nil
	}
}

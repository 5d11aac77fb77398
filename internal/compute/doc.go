// Package compute owns the device-side state of one integrator and runs
// the per-step kernels on it.
//
// A Context copies every model buffer it needs, so no two integrators
// share bond flags. The kernels are executed by a Backend:
//
//   - cpu: goroutine chunks over nodes, always available
//   - occa: OKL kernels through gocca, built with -tags occa
//
// The force kernel comes in two shapes. The inline shape sums a node's
// bonds in one pass. The buffered shape writes one force per bond slot and
// folds them in a separate reduction. Both sum in slot order and give the
// same bits on the cpu backend:
//
//	ctx, err := compute.NewContext(m, compute.Options{Backend: "cpu"})
//	f := dynamo.NewField(m.NumNodes())
//	ctx.Forces(u, f, true)
package compute

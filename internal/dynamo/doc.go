// Package dynamo provides the primitives shared by the peridynamics engine.
//
// The package defines the data types and contracts every other layer works
// against:
//
//   - [Field]: node-major nodal vector field (displacement, velocity, force)
//   - [Config]: typed integration configuration (scheme, dt, density, ...)
//   - [Integrator]: one time-integration scheme (step, report, reset)
//   - [Report]: damage vector and tip diagnostics
//   - [Diagnostic]: a scalar that may be unavailable
//
// # Example
//
//	ctx, _ := compute.NewContext(m, compute.Options{})
//	integ, _ := integrators.New(ctx, cfg)
//	res, _ := integ.Step()
//	rep := integ.Report()
//
// # Thread Safety
//
// Integrators are NOT thread-safe. Work inside a step is spread over
// goroutines by [ParallelFor]; callers drive a single integrator from one
// goroutine.
package dynamo

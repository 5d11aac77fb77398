package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrDimensionMismatch indicates an input array whose length disagrees with the model.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between input and model")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownScheme indicates an integration scheme name that is not registered.
	ErrUnknownScheme = errors.New("dynamo: unknown integration scheme")

	// ErrSetup indicates a device, kernel or buffer could not be acquired.
	ErrSetup = errors.New("dynamo: setup failed")

	// ErrTooManyRejections indicates an adaptive step was rejected more times than allowed.
	ErrTooManyRejections = errors.New("dynamo: adaptive step rejected too many times")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrDevice indicates a kernel dispatch failed on the compute device.
	ErrDevice = errors.New("dynamo: device kernel failed")

	// ErrClosed indicates use of an integrator after Close.
	ErrClosed = errors.New("dynamo: integrator closed")
)

// FieldError names an input array whose length is wrong.
type FieldError struct {
	Field string
	Want  int
	Got   int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("dynamo: field %s has length %d, want %d", e.Field, e.Got, e.Want)
}

func (e *FieldError) Unwrap() error { return ErrDimensionMismatch }

// SetupError names the resource that could not be acquired.
type SetupError struct {
	Resource string
	Err      error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dynamo: setup of %s failed", e.Resource)
	}
	return fmt.Sprintf("dynamo: setup of %s failed: %v", e.Resource, e.Err)
}

func (e *SetupError) Unwrap() []error { return []error{ErrSetup, e.Err} }

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

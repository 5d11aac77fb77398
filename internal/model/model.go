// Package model assembles the inputs the integration core consumes: node
// coordinates and volumes, the bond family and its constants, boundary
// condition tables and tip flags.
package model

import (
	"fmt"
	"math"

	"github.com/san-kum/peridyn/internal/bonds"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// BCKind is the displacement boundary condition of one degree of freedom.
type BCKind uint8

const (
	// BCFree leaves the dof to the integrator.
	BCFree BCKind = iota
	// BCFixed holds the dof at its value.
	BCFixed
	// BCRamp holds the dof at value * elapsed time, velocity at value.
	BCRamp
)

func (k BCKind) String() string {
	switch k {
	case BCFree:
		return "free"
	case BCFixed:
		return "fixed"
	case BCRamp:
		return "ramp"
	}
	return fmt.Sprintf("BCKind(%d)", uint8(k))
}

// ForceKind is the force boundary condition of one degree of freedom.
type ForceKind uint8

const (
	ForceFree ForceKind = iota
	// ForceLoaded adds value * load scale to the reduced nodal force.
	ForceLoaded
)

// Model is a ready-to-integrate peridynamic body.
type Model struct {
	Coords  []float64 // nnodes*DOF reference coordinates
	Volumes []float64 // nnodes

	Family          *bonds.Family
	Stiffness       bonds.Constants
	CriticalStretch bonds.Constants

	DispBCTypes   []BCKind // nnodes*DOF
	DispBCValues  []float64
	ForceBCTypes  []ForceKind // nnodes*DOF
	ForceBCValues []float64

	Tip []bool // nnodes

	Horizon float64
}

// New wires arrays into a model with free boundary conditions.
func New(coords, volumes []float64, family *bonds.Family, stiffness, criticalStretch bonds.Constants) *Model {
	n := len(volumes)
	return &Model{
		Coords:          coords,
		Volumes:         volumes,
		Family:          family,
		Stiffness:       stiffness,
		CriticalStretch: criticalStretch,
		DispBCTypes:     make([]BCKind, n*dynamo.DOF),
		DispBCValues:    make([]float64, n*dynamo.DOF),
		ForceBCTypes:    make([]ForceKind, n*dynamo.DOF),
		ForceBCValues:   make([]float64, n*dynamo.DOF),
		Tip:             make([]bool, n),
	}
}

func (m *Model) NumNodes() int { return len(m.Volumes) }

// Coord returns the reference position of node i.
func (m *Model) Coord(i int) [3]float64 {
	return [3]float64{m.Coords[i*dynamo.DOF], m.Coords[i*dynamo.DOF+1], m.Coords[i*dynamo.DOF+2]}
}

// Validate rejects arrays whose lengths disagree with the node count,
// one-sided bonds and non-positive volumes.
func (m *Model) Validate() error {
	n := m.NumNodes()
	if n == 0 {
		return &dynamo.FieldError{Field: "volumes", Want: 1, Got: 0}
	}
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"coords", len(m.Coords), n * dynamo.DOF},
		{"disp_bc_types", len(m.DispBCTypes), n * dynamo.DOF},
		{"disp_bc_values", len(m.DispBCValues), n * dynamo.DOF},
		{"force_bc_types", len(m.ForceBCTypes), n * dynamo.DOF},
		{"force_bc_values", len(m.ForceBCValues), n * dynamo.DOF},
		{"tip", len(m.Tip), n},
	}
	for _, c := range checks {
		if c.got != c.want {
			return &dynamo.FieldError{Field: c.name, Want: c.want, Got: c.got}
		}
	}
	if m.Family == nil {
		return fmt.Errorf("%w: model has no bond family", dynamo.ErrDimensionMismatch)
	}
	if m.Family.NumNodes() != n {
		return &dynamo.FieldError{Field: "family", Want: n, Got: m.Family.NumNodes()}
	}
	// forces only cancel pairwise when both directed bonds exist
	if i, j, ok := m.Family.Unpaired(); ok {
		return fmt.Errorf("%w: bond %d->%d has no reverse bond", dynamo.ErrDimensionMismatch, i, j)
	}
	slots := n * m.Family.MaxNeighbors()
	for _, c := range []struct {
		name string
		k    bonds.Constants
	}{{"stiffness", m.Stiffness}, {"critical_stretch", m.CriticalStretch}} {
		if c.k.Len() != 1 && c.k.Len() != slots {
			return &dynamo.FieldError{Field: c.name, Want: slots, Got: c.k.Len()}
		}
	}
	for i, v := range m.Volumes {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: node %d has volume %g", dynamo.ErrParameterBounds, i, v)
		}
	}
	return nil
}

// NumForceBCNodes counts nodes with at least one loaded dof.
func (m *Model) NumForceBCNodes() int {
	count := 0
	for i := 0; i < m.NumNodes(); i++ {
		for d := 0; d < dynamo.DOF; d++ {
			if m.ForceBCTypes[i*dynamo.DOF+d] == ForceLoaded {
				count++
				break
			}
		}
	}
	return count
}

// Select returns the nodes whose reference position satisfies pred.
func (m *Model) Select(pred func(x [3]float64) bool) []int {
	var out []int
	for i := 0; i < m.NumNodes(); i++ {
		if pred(m.Coord(i)) {
			out = append(out, i)
		}
	}
	return out
}

func (m *Model) SetDisplacementBC(nodes []int, dof int, kind BCKind, value float64) {
	for _, i := range nodes {
		m.DispBCTypes[i*dynamo.DOF+dof] = kind
		m.DispBCValues[i*dynamo.DOF+dof] = value
	}
}

func (m *Model) SetForceBC(nodes []int, dof int, value float64) {
	for _, i := range nodes {
		m.ForceBCTypes[i*dynamo.DOF+dof] = ForceLoaded
		m.ForceBCValues[i*dynamo.DOF+dof] = value
	}
}

func (m *Model) SetTip(nodes []int) {
	for _, i := range nodes {
		m.Tip[i] = true
	}
}

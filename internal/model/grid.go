package model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/san-kum/peridyn/internal/bonds"
	"github.com/san-kum/peridyn/internal/dynamo"
)

// Grid is a regular lattice of nodes.
type Grid struct {
	Nx, Ny, Nz int
	Spacing    float64
	Origin     [3]float64
}

func (g Grid) NumNodes() int { return g.Nx * g.Ny * g.Nz }

// Coords lists node positions with x varying fastest.
func (g Grid) Coords() []float64 {
	coords := make([]float64, 0, g.NumNodes()*dynamo.DOF)
	for k := 0; k < g.Nz; k++ {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				coords = append(coords,
					g.Origin[0]+float64(i)*g.Spacing,
					g.Origin[1]+float64(j)*g.Spacing,
					g.Origin[2]+float64(k)*g.Spacing,
				)
			}
		}
	}
	return coords
}

// Material holds the bond-based constants of a brittle elastic solid.
type Material struct {
	ElasticModulus  float64
	Horizon         float64
	CriticalStretch float64
}

// BondStiffness is the micromodulus 18E/(pi delta^4) of the bond-based model.
func (m Material) BondStiffness() float64 {
	return 18.0 * m.ElasticModulus / (math.Pi * math.Pow(m.Horizon, 4))
}

// CrackFunc reports whether the bond between two reference positions
// crosses a pre-existing crack. Such bonds are never created.
type CrackFunc func(a, b [3]float64) bool

// Build lays out a grid, searches horizons and assigns uniform constants.
func Build(g Grid, mat Material, crack CrackFunc) (*Model, error) {
	if g.Nx < 1 || g.Ny < 1 || g.Nz < 1 || g.Spacing <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%dx%d spacing %g", dynamo.ErrParameterBounds, g.Nx, g.Ny, g.Nz, g.Spacing)
	}
	if mat.Horizon <= 0 || mat.CriticalStretch <= 0 {
		return nil, fmt.Errorf("%w: horizon %g critical stretch %g", dynamo.ErrParameterBounds, mat.Horizon, mat.CriticalStretch)
	}

	coords := g.Coords()
	lists, err := Neighborhoods(coords, mat.Horizon, crack)
	if err != nil {
		return nil, err
	}
	family, err := bonds.New(lists, 0)
	if err != nil {
		return nil, err
	}

	n := g.NumNodes()
	vol := g.Spacing * g.Spacing * g.Spacing
	volumes := make([]float64, n)
	for i := range volumes {
		volumes[i] = vol
	}

	m := New(coords, volumes, family, bonds.Uniform(mat.BondStiffness()), bonds.Uniform(mat.CriticalStretch))
	m.Horizon = mat.Horizon
	return m, nil
}

// Neighborhoods finds, for every node, the nodes strictly within the
// horizon, sorted by index. Bonds rejected by crack are left out on both
// ends.
func Neighborhoods(coords []float64, horizon float64, crack CrackFunc) ([][]int, error) {
	n := len(coords) / dynamo.DOF
	index := make(map[[3]float64]int, n)
	pts := make(kdtree.Points, n)
	for i := 0; i < n; i++ {
		key := [3]float64{coords[i*3], coords[i*3+1], coords[i*3+2]}
		if j, dup := index[key]; dup {
			return nil, fmt.Errorf("model: nodes %d and %d share position %v", j, i, key)
		}
		index[key] = i
		pts[i] = kdtree.Point{key[0], key[1], key[2]}
	}

	// kdtree.New reorders its input.
	tree := kdtree.New(append(kdtree.Points(nil), pts...), false)
	r2 := horizon * horizon

	lists := make([][]int, n)
	for i, p := range pts {
		keep := kdtree.NewDistKeeper(r2)
		tree.NearestSet(keep, p)

		a := [3]float64{p[0], p[1], p[2]}
		for _, c := range keep.Heap {
			if c.Comparable == nil || c.Dist >= r2 {
				continue
			}
			q := c.Comparable.(kdtree.Point)
			b := [3]float64{q[0], q[1], q[2]}
			j := index[b]
			if j == i {
				continue
			}
			if crack != nil && (crack(a, b) || crack(b, a)) {
				continue
			}
			lists[i] = append(lists[i], j)
		}
		sort.Ints(lists[i])
	}
	return lists, nil
}

// StraightCrack returns a crack along the plane x = x0 covering
// y in (y0, y1), cutting any bond whose endpoints straddle the plane at a
// crossing height inside the interval.
func StraightCrack(x0, y0, y1 float64) CrackFunc {
	return func(a, b [3]float64) bool {
		p1, p2 := a, b
		if p1[0] > p2[0] {
			p1, p2 = p2, p1
		}
		if !(p1[0] < x0 && p2[0] > x0) {
			return false
		}
		m := (p2[1] - p1[1]) / (p2[0] - p1[0])
		c := p1[1] - m*p1[0]
		h := m*x0 + c
		return h > y0 && h < y1
	}
}

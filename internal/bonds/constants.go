package bonds

import "fmt"

// Constants holds a per-bond material constant. A single value is shared
// by every bond; otherwise there is one value per (node, slot).
type Constants struct {
	values       []float64
	maxNeighbors int
}

func Uniform(v float64) Constants {
	return Constants{values: []float64{v}}
}

// PerBond wraps an nnodes*maxNeighbors array indexed like the family rows.
func PerBond(values []float64, f *Family) (Constants, error) {
	want := f.NumNodes() * f.MaxNeighbors()
	if len(values) != want {
		return Constants{}, fmt.Errorf("bonds: per-bond constants have length %d, want %d", len(values), want)
	}
	c := make([]float64, len(values))
	copy(c, values)
	return Constants{values: c, maxNeighbors: f.MaxNeighbors()}, nil
}

func (c Constants) IsUniform() bool { return len(c.values) == 1 }

func (c Constants) Len() int { return len(c.values) }

func (c Constants) At(i, slot int) float64 {
	if len(c.values) == 1 {
		return c.values[0]
	}
	return c.values[i*c.maxNeighbors+slot]
}

// Values returns the backing array, length 1 for uniform constants.
func (c Constants) Values() []float64 { return c.values }

// Expand returns one value per slot for an nnodes x maxNeighbors layout.
func (c Constants) Expand(nnodes, maxNeighbors int) []float64 {
	out := make([]float64, nnodes*maxNeighbors)
	if len(c.values) == 1 {
		for i := range out {
			out[i] = c.values[0]
		}
		return out
	}
	copy(out, c.values)
	return out
}

// Package bonds stores the node-bond adjacency of a peridynamic body.
//
// Every node owns a fixed-width row of MaxNeighbors slots. The first
// Length(i) slots hold neighbor indices, the rest are padding. Each used
// slot carries an active flag that only ever goes from active to broken.
package bonds

import (
	"fmt"
)

const (
	broken uint8 = 0
	active uint8 = 1

	// Padding marks an unused neighbor slot.
	Padding int32 = -1
)

// Family is the bond adjacency store. Bond (i, slot) is owned by node i;
// distinct bonds never share a flag, so Deactivate may be called
// concurrently for distinct pairs.
type Family struct {
	nnodes       int
	maxNeighbors int
	neighbors    []int32
	lengths      []int32
	flags        []uint8
}

// New builds a family from per-node neighbor lists. maxNeighbors of zero
// uses the longest list.
func New(lists [][]int, maxNeighbors int) (*Family, error) {
	longest := 0
	for _, l := range lists {
		if len(l) > longest {
			longest = len(l)
		}
	}
	if maxNeighbors == 0 {
		maxNeighbors = longest
	}
	if longest > maxNeighbors {
		return nil, fmt.Errorf("bonds: node has %d neighbors, max is %d", longest, maxNeighbors)
	}

	n := len(lists)
	f := &Family{
		nnodes:       n,
		maxNeighbors: maxNeighbors,
		neighbors:    make([]int32, n*maxNeighbors),
		lengths:      make([]int32, n),
		flags:        make([]uint8, n*maxNeighbors),
	}
	for i := range f.neighbors {
		f.neighbors[i] = Padding
	}
	for i, l := range lists {
		f.lengths[i] = int32(len(l))
		row := i * maxNeighbors
		for k, j := range l {
			if j < 0 || j >= n {
				return nil, fmt.Errorf("bonds: node %d slot %d references node %d outside [0, %d)", i, k, j, n)
			}
			if j == i {
				return nil, fmt.Errorf("bonds: node %d is bonded to itself", i)
			}
			f.neighbors[row+k] = int32(j)
			f.flags[row+k] = active
		}
	}
	return f, nil
}

func (f *Family) NumNodes() int     { return f.nnodes }
func (f *Family) MaxNeighbors() int { return f.maxNeighbors }

// Length is the initial bond count of node i.
func (f *Family) Length(i int) int { return int(f.lengths[i]) }

// Neighbor returns the node bonded to i in the given slot.
func (f *Family) Neighbor(i, slot int) int {
	return int(f.neighbors[i*f.maxNeighbors+slot])
}

// Neighbors returns the used part of node i's row. The slice aliases the
// store and must not be modified.
func (f *Family) Neighbors(i int) []int32 {
	row := i * f.maxNeighbors
	return f.neighbors[row : row+int(f.lengths[i])]
}

func (f *Family) Active(i, slot int) bool {
	return f.flags[i*f.maxNeighbors+slot] == active
}

// Deactivate marks bond (i, slot) broken. Breaking a broken bond is a no-op.
func (f *Family) Deactivate(i, slot int) {
	f.flags[i*f.maxNeighbors+slot] = broken
}

// ActiveCount is the number of unbroken bonds of node i.
func (f *Family) ActiveCount(i int) int {
	row := f.flags[i*f.maxNeighbors : i*f.maxNeighbors+int(f.lengths[i])]
	n := 0
	for _, b := range row {
		n += int(b)
	}
	return n
}

// Bonds is the total number of directed bonds.
func (f *Family) Bonds() int {
	n := 0
	for _, l := range f.lengths {
		n += int(l)
	}
	return n
}

// Broken is the total number of broken directed bonds.
func (f *Family) Broken() int {
	n := 0
	for i := 0; i < f.nnodes; i++ {
		n += f.Length(i) - f.ActiveCount(i)
	}
	return n
}

// Damage is 1 - active/initial for node i, clamped to [0, 1]. A node that
// never had bonds has zero damage.
func (f *Family) Damage(i int) float64 {
	l := f.Length(i)
	if l == 0 {
		return 0
	}
	d := 1 - float64(f.ActiveCount(i))/float64(l)
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// Symmetric reports whether every bond (i, j) has a matching (j, i).
func (f *Family) Symmetric() bool {
	_, _, ok := f.Unpaired()
	return !ok
}

// Unpaired returns the first bond (i, j) without a matching (j, i).
func (f *Family) Unpaired() (i, j int, ok bool) {
	for i := 0; i < f.nnodes; i++ {
		for _, j := range f.Neighbors(i) {
			found := false
			for _, k := range f.Neighbors(int(j)) {
				if int(k) == i {
					found = true
					break
				}
			}
			if !found {
				return i, int(j), true
			}
		}
	}
	return 0, 0, false
}

// Clone returns an independent copy, flags included.
func (f *Family) Clone() *Family {
	c := &Family{
		nnodes:       f.nnodes,
		maxNeighbors: f.maxNeighbors,
		neighbors:    make([]int32, len(f.neighbors)),
		lengths:      make([]int32, len(f.lengths)),
		flags:        make([]uint8, len(f.flags)),
	}
	copy(c.neighbors, f.neighbors)
	copy(c.lengths, f.lengths)
	copy(c.flags, f.flags)
	return c
}

// Raw exposes the padded neighbor table, lengths and flags for device
// upload. Callers that write flags must uphold the active-to-broken rule.
func (f *Family) Raw() (neighbors, lengths []int32, flags []uint8) {
	return f.neighbors, f.lengths, f.flags
}

// BrokenSet lists the flat indices of broken bonds in ascending order.
func (f *Family) BrokenSet() []int {
	var out []int
	for i := 0; i < f.nnodes; i++ {
		row := i * f.maxNeighbors
		for k := 0; k < f.Length(i); k++ {
			if f.flags[row+k] == broken {
				out = append(out, row+k)
			}
		}
	}
	return out
}

// Package noise samples spatially correlated nodal noise for stochastic
// integration.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/peridyn/internal/dynamo"
)

var ErrNotPositiveDefinite = errors.New("noise: covariance is not positive definite")

// Source produces one noise increment per step.
type Source interface {
	Sample(seed int64, steps int) ([]dynamo.Field, error)
}

// Generator draws C * L * z for every dof of every step, where K = L L^T
// is the node covariance and z is standard normal.
type Generator struct {
	l         mat.TriDense
	amplitude float64
	nnodes    int
}

func New(k mat.Symmetric, amplitude float64) (*Generator, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, ErrNotPositiveDefinite
	}
	g := &Generator{amplitude: amplitude, nnodes: k.SymmetricDim()}
	chol.LTo(&g.l)
	return g, nil
}

func (g *Generator) NumNodes() int { return g.nnodes }

func (g *Generator) Sample(seed int64, steps int) ([]dynamo.Field, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d noise steps", dynamo.ErrParameterBounds, steps)
	}
	rng := rand.New(rand.NewSource(seed))
	z := mat.NewVecDense(g.nnodes, nil)
	var y mat.VecDense

	out := make([]dynamo.Field, steps)
	for s := range out {
		f := dynamo.NewField(g.nnodes)
		for d := 0; d < dynamo.DOF; d++ {
			for i := 0; i < g.nnodes; i++ {
				z.SetVec(i, rng.NormFloat64())
			}
			y.MulVec(&g.l, z)
			for i := 0; i < g.nnodes; i++ {
				f[i*dynamo.DOF+d] = g.amplitude * y.AtVec(i)
			}
		}
		out[s] = f
	}
	return out, nil
}

// SquaredExponential builds K_ij = variance * exp(-|x_i - x_j|^2 / (2 l^2))
// over node coordinates, with jitter added to the diagonal.
func SquaredExponential(coords []float64, lengthScale, variance, jitter float64) *mat.SymDense {
	n := len(coords) / dynamo.DOF
	k := mat.NewSymDense(n, nil)
	inv := 1 / (2 * lengthScale * lengthScale)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r2 := 0.0
			for d := 0; d < dynamo.DOF; d++ {
				dx := coords[i*dynamo.DOF+d] - coords[j*dynamo.DOF+d]
				r2 += dx * dx
			}
			v := variance * math.Exp(-r2*inv)
			if i == j {
				v += jitter
			}
			k.SetSym(i, j, v)
		}
	}
	return k
}

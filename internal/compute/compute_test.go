package compute

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/peridyn/internal/bonds"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
)

func pair(t *testing.T) *model.Model {
	t.Helper()
	fam, err := bonds.New([][]int{{1}, {0}}, 1)
	require.NoError(t, err)
	return model.New([]float64{0, 0, 0, 1, 0, 0}, []float64{1, 1}, fam, bonds.Uniform(1), bonds.Uniform(0.1))
}

func plate(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Build(
		model.Grid{Nx: 12, Ny: 12, Nz: 1, Spacing: 0.1},
		model.Material{ElasticModulus: 0.05, Horizon: 0.25, CriticalStretch: 0.005},
		nil,
	)
	require.NoError(t, err)
	return m
}

func randomField(n int, amp float64, seed int64) dynamo.Field {
	r := rand.New(rand.NewSource(seed))
	u := dynamo.NewField(n)
	for i := range u {
		u[i] = amp * (2*r.Float64() - 1)
	}
	return u
}

func TestForces_Pair(t *testing.T) {
	ctx, err := NewContext(pair(t), Options{Backend: "cpu"})
	require.NoError(t, err)
	defer ctx.Close()

	u := dynamo.Field{0, 0, 0, 0.01, 0, 0}
	f := dynamo.NewField(2)
	ctx.Forces(u, f, true)

	assert.InDelta(t, 0.01, f[0], 1e-12, "stretched bond pulls node 0 toward node 1")
	assert.InDelta(t, -0.01, f[3], 1e-12)
	assert.Equal(t, -f[0], f[3])
	assert.Zero(t, f[1])
	assert.Equal(t, 0, ctx.Family().Broken())
}

func TestForces_Failure(t *testing.T) {
	ctx, err := NewContext(pair(t), Options{Backend: "cpu"})
	require.NoError(t, err)

	u := dynamo.Field{0, 0, 0, 0.5, 0, 0}
	f := dynamo.NewField(2)

	ctx.Forces(u, f, false)
	assert.NotZero(t, f[0], "unchecked evaluation keeps the bond")
	assert.Equal(t, 0, ctx.Family().Broken())

	ctx.Forces(u, f, true)
	assert.Equal(t, dynamo.Field{0, 0, 0, 0, 0, 0}, f)
	assert.Equal(t, 2, ctx.Family().Broken())
	assert.Equal(t, []float64{1, 1}, ctx.Damage())

	// relaxing the displacement never heals the bond
	ctx.Forces(dynamo.NewField(2), f, true)
	assert.Equal(t, 2, ctx.Family().Broken())

	ctx.RestoreBonds()
	assert.Equal(t, 0, ctx.Family().Broken())
}

func TestForces_InlineMatchesBuffered(t *testing.T) {
	m := plate(t)
	inline, err := NewContext(m, Options{Backend: "cpu", Workers: 4})
	require.NoError(t, err)
	buffered, err := NewContext(m, Options{Backend: "cpu", Workers: 3, Reduction: dynamo.ReductionBuffered})
	require.NoError(t, err)

	u := randomField(m.NumNodes(), 2e-3, 7)
	fa := dynamo.NewField(m.NumNodes())
	fb := dynamo.NewField(m.NumNodes())
	for step := 0; step < 3; step++ {
		inline.Forces(u, fa, true)
		buffered.Forces(u, fb, true)
		require.Equal(t, fa, fb)
		require.Equal(t, inline.Family().BrokenSet(), buffered.Family().BrokenSet())
		for i := range u {
			u[i] *= 1.5
		}
	}
	assert.Greater(t, inline.Family().Broken(), 0)
}

func TestForces_SerialMatchesParallel(t *testing.T) {
	m := plate(t)
	serial, err := NewContext(m, Options{Backend: "cpu", Workers: 1})
	require.NoError(t, err)
	parallel, err := NewContext(m, Options{Backend: "cpu", Workers: 8})
	require.NoError(t, err)

	u := randomField(m.NumNodes(), 1e-3, 3)
	fa := dynamo.NewField(m.NumNodes())
	fb := dynamo.NewField(m.NumNodes())
	serial.Forces(u, fa, true)
	parallel.Forces(u, fb, true)
	assert.Equal(t, fa, fb)
}

func TestForces_NewtonThirdLaw(t *testing.T) {
	m := plate(t)
	ctx, err := NewContext(m, Options{Backend: "cpu"})
	require.NoError(t, err)

	u := randomField(m.NumNodes(), 1e-4, 11)
	f := dynamo.NewField(m.NumNodes())
	ctx.Forces(u, f, false)

	var sum [3]float64
	for i := 0; i < m.NumNodes(); i++ {
		for d := 0; d < 3; d++ {
			sum[d] += f[i*3+d]
		}
	}
	for d := 0; d < 3; d++ {
		assert.InDelta(t, 0, sum[d], 1e-9)
	}
}

func TestLumpedEuler_MatchesTwoStage(t *testing.T) {
	m := plate(t)
	right := m.Select(func(x [3]float64) bool { return x[0] > 1.0 })
	m.SetDisplacementBC(right, 0, model.BCRamp, 0.01)
	m.SetForceBC(m.Select(func(x [3]float64) bool { return x[1] > 1.0 }), 1, 1e-3)

	twoStage, err := NewContext(m, Options{Backend: "cpu"})
	require.NoError(t, err)
	lumped, err := NewContext(m, Options{Backend: "cpu"})
	require.NoError(t, err)

	dt, damp := 1e-3, 1.0
	ua := randomField(m.NumNodes(), 1e-3, 5)
	ub := ua.Clone()
	f := dynamo.NewField(m.NumNodes())
	for step := 1; step <= 5; step++ {
		tm := float64(step) * dt
		twoStage.Forces(ua, f, true)
		for i := range ua {
			ua[i] = EulerUpdate(ua[i], f[i], dt, damp)
		}
		twoStage.ApplyBC(ua, nil, tm)

		lumped.LumpedEuler(ub, dt, damp, tm)
		require.Equal(t, ua, ub, "step %d", step)
	}
}

func TestApplyBC(t *testing.T) {
	m := pair(t)
	m.SetDisplacementBC([]int{0}, 0, model.BCFixed, 0.25)
	m.SetDisplacementBC([]int{1}, 2, model.BCRamp, 2)
	ctx, err := NewContext(m, Options{})
	require.NoError(t, err)

	u := dynamo.Field{9, 9, 9, 9, 9, 9}
	v := dynamo.Field{9, 9, 9, 9, 9, 9}
	ctx.ApplyBC(u, v, 0.5)
	assert.Equal(t, dynamo.Field{0.25, 9, 9, 9, 9, 1}, u)
	assert.Equal(t, dynamo.Field{0, 9, 9, 9, 9, 2}, v)
	assert.True(t, ctx.Held(0))
	assert.False(t, ctx.Held(1))
}

func TestSetLoadScale(t *testing.T) {
	free, err := NewContext(pair(t), Options{})
	require.NoError(t, err)
	free.SetLoadScale(3)
	assert.Equal(t, 1.0, free.LoadScale())

	m := pair(t)
	m.SetForceBC([]int{1}, 1, 2.0)
	loaded, err := NewContext(m, Options{})
	require.NoError(t, err)
	loaded.SetLoadScale(0.5)

	f := dynamo.NewField(2)
	loaded.Forces(dynamo.NewField(2), f, true)
	assert.Equal(t, 1.0, f[4])
}

func TestTipMean(t *testing.T) {
	m := pair(t)
	ctx, err := NewContext(m, Options{})
	require.NoError(t, err)
	assert.False(t, ctx.TipMean(dynamo.NewField(2), 2).Valid)

	m.SetTip([]int{0, 1})
	ctx, err = NewContext(m, Options{})
	require.NoError(t, err)
	d := ctx.TipMean(dynamo.Field{0, 0, 1, 0, 0, 3}, 2)
	assert.True(t, d.Valid)
	assert.Equal(t, 2.0, d.Value)
}

func TestNewContext_Exclusive(t *testing.T) {
	m := pair(t)
	a, err := NewContext(m, Options{})
	require.NoError(t, err)
	b, err := NewContext(m, Options{})
	require.NoError(t, err)

	a.Forces(dynamo.Field{0, 0, 0, 1, 0, 0}, dynamo.NewField(2), true)
	assert.Equal(t, 2, a.Family().Broken())
	assert.Equal(t, 0, b.Family().Broken())
	assert.Equal(t, 0, m.Family.Broken())
}

func TestNewContext_Invalid(t *testing.T) {
	m := pair(t)
	m.Tip = m.Tip[:1]
	_, err := NewContext(m, Options{})
	var fe *dynamo.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "tip", fe.Field)

	_, err = NewContext(pair(t), Options{Backend: "tpu"})
	assert.ErrorIs(t, err, dynamo.ErrSetup)

	// a bond without its reverse cannot balance
	m = pair(t)
	m.Family, err = bonds.New([][]int{{1}, {}}, 1)
	require.NoError(t, err)
	_, err = NewContext(m, Options{Backend: "cpu"})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestRefLength(t *testing.T) {
	ctx, err := NewContext(plate(t), Options{})
	require.NoError(t, err)
	for _, l := range ctx.buf.RefLength {
		assert.False(t, math.IsNaN(l))
	}
}

func BenchmarkForces(b *testing.B) {
	m, _ := model.Build(
		model.Grid{Nx: 40, Ny: 40, Nz: 1, Spacing: 0.025},
		model.Material{ElasticModulus: 0.05, Horizon: 0.0755, CriticalStretch: 0.005},
		nil,
	)
	for _, r := range []dynamo.Reduction{dynamo.ReductionInline, dynamo.ReductionBuffered} {
		b.Run(string(r), func(b *testing.B) {
			ctx, _ := NewContext(m, Options{Backend: "cpu", Reduction: r})
			u := randomField(m.NumNodes(), 1e-5, 1)
			f := dynamo.NewField(m.NumNodes())
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ctx.Forces(u, f, false)
			}
		})
	}
}

type failingBackend struct {
	*CPUBackend
	err error
}

func (f *failingBackend) Err() error { return f.err }

func TestContextErr(t *testing.T) {
	var fb *failingBackend
	ctx, err := NewContext(pair(t), Options{NewBackend: func(b *Buffers) (Backend, error) {
		fb = &failingBackend{CPUBackend: NewCPUBackend(b, 1)}
		return fb, nil
	}})
	require.NoError(t, err)
	assert.Equal(t, "cpu", ctx.BackendName())
	assert.NoError(t, ctx.Err())

	fb.err = errors.New("kernel launch failed")
	err = ctx.Err()
	assert.ErrorIs(t, err, dynamo.ErrDevice)
	assert.ErrorIs(t, err, fb.err)

	_, err = NewContext(pair(t), Options{NewBackend: func(*Buffers) (Backend, error) {
		return nil, errors.New("no device")
	}})
	assert.ErrorIs(t, err, dynamo.ErrSetup)
}

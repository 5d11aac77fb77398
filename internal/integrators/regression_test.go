package integrators

import (
	"encoding/json"
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
)

var update = flag.Bool("update", false, "rewrite golden files")

type golden struct {
	Damage          []float64 `json:"damage"`
	Displacement    []float64 `json:"displacement"`
	TipDisplacement float64   `json:"tip_displacement"`
	BrokenBonds     int       `json:"broken_bonds"`
}

// regressionPlate is a unit square with a 0.3 long central crack, pulled
// along x by ramped columns one horizon wide at each edge.
func regressionPlate(tb testing.TB, dt float64) *model.Model {
	tb.Helper()
	const (
		n       = 25
		spacing = 1.0 / n
		horizon = 0.1
	)
	m, err := model.Build(
		model.Grid{Nx: n, Ny: n, Nz: 1, Spacing: spacing, Origin: [3]float64{spacing / 2, spacing / 2, 0}},
		model.Material{ElasticModulus: 0.05, Horizon: horizon, CriticalStretch: 0.005},
		model.StraightCrack(0.5, 0.35, 0.65),
	)
	if err != nil {
		tb.Fatal(err)
	}
	rate := 0.5 * 1e-5 / dt
	lhs := m.Select(func(x [3]float64) bool { return x[0] < 1.5*horizon })
	rhs := m.Select(func(x [3]float64) bool { return x[0] > 1-1.5*horizon })
	m.SetDisplacementBC(lhs, 0, model.BCRamp, -rate)
	m.SetDisplacementBC(rhs, 0, model.BCRamp, rate)
	for _, side := range [][]int{lhs, rhs} {
		m.SetDisplacementBC(side, 1, model.BCFixed, 0)
		m.SetDisplacementBC(side, 2, model.BCFixed, 0)
	}
	m.SetTip(rhs)
	return m
}

func TestRegression_Euler(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.DiagnosticDOF = 0
	m := regressionPlate(t, cfg.Dt)

	ctx, err := compute.NewContext(m, compute.Options{Backend: "cpu"})
	if err != nil {
		t.Fatal(err)
	}
	it, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	for i := 0; i < 10; i++ {
		if _, err := it.Step(); err != nil {
			t.Fatal(err)
		}
	}
	rep := it.Report()
	got := golden{
		Damage:          rep.Damage,
		Displacement:    it.Displacement(),
		TipDisplacement: rep.TipDisplacement.Or(math.NaN()),
		BrokenBonds:     rep.BrokenBonds,
	}

	path := filepath.Join("testdata", "regression_euler.json")
	if *update {
		data, err := json.MarshalIndent(got, "", "  ")
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var want golden
	if err := json.Unmarshal(data, &want); err != nil {
		t.Fatal(err)
	}

	if got.BrokenBonds != want.BrokenBonds {
		t.Errorf("broken bonds = %d, want %d", got.BrokenBonds, want.BrokenBonds)
	}
	if len(got.Damage) != len(want.Damage) {
		t.Fatalf("damage has %d nodes, want %d", len(got.Damage), len(want.Damage))
	}
	for i := range want.Damage {
		if got.Damage[i] != want.Damage[i] {
			t.Errorf("damage[%d] = %v, want %v", i, got.Damage[i], want.Damage[i])
		}
	}
	if len(got.Displacement) != len(want.Displacement) {
		t.Fatalf("displacement has %d dofs, want %d", len(got.Displacement), len(want.Displacement))
	}
	for i := range want.Displacement {
		if got.Displacement[i] != want.Displacement[i] {
			t.Errorf("u[%d] = %v, want %v", i, got.Displacement[i], want.Displacement[i])
		}
	}
	if got.TipDisplacement != want.TipDisplacement {
		t.Errorf("tip displacement = %v, want %v", got.TipDisplacement, want.TipDisplacement)
	}
}

func TestRegression_TipDisplacement(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.DiagnosticDOF = 0
	m := regressionPlate(t, cfg.Dt)
	ctx, err := compute.NewContext(m, compute.Options{Backend: "cpu"})
	if err != nil {
		t.Fatal(err)
	}
	it, err := New(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	steps := 10
	for i := 0; i < steps; i++ {
		if _, err := it.Step(); err != nil {
			t.Fatal(err)
		}
	}
	// tip nodes are all on the ramp, so the mean follows it exactly
	want := 0.5 * 1e-5 / cfg.Dt * it.Stats().Time
	got := it.Report().TipDisplacement
	if !got.Valid || math.Abs(got.Value-want) > 1e-15 {
		t.Errorf("tip displacement = %v, want %g", got, want)
	}
}

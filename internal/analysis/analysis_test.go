package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/sim"
)

func TestPowerSpectrum(t *testing.T) {
	const n = 64
	dt := 1.0 / n
	data := make([]float64, n)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*8*float64(i)*dt)
	}

	ps := PowerSpectrum(data, dt)
	if len(ps.Power) != n/2+1 {
		t.Fatalf("expected %d bins, got %d", n/2+1, len(ps.Power))
	}
	if ps.Power[0] > 1e-12 {
		t.Errorf("mean not removed: bin 0 = %g", ps.Power[0])
	}

	f, p := ps.Dominant()
	if math.Abs(f-8) > 1e-9 {
		t.Errorf("dominant frequency = %f, want 8", f)
	}
	if math.Abs(p-0.5) > 1e-9 {
		t.Errorf("amplitude = %f, want 0.5", p)
	}
}

func TestPowerSpectrum_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		dt   float64
	}{
		{"empty", nil, 1},
		{"single", []float64{1}, 1},
		{"zero dt", []float64{1, 2, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := PowerSpectrum(tt.data, tt.dt)
			if len(ps.Power) != 0 {
				t.Errorf("expected empty spectrum, got %d bins", len(ps.Power))
			}
			if f, _ := ps.Dominant(); f != 0 {
				t.Errorf("expected no dominant frequency, got %f", f)
			}
		})
	}
}

func records() []sim.Record {
	out := make([]sim.Record, 0, 6)
	for i := 0; i < 6; i++ {
		r := sim.Record{
			Step:            i,
			LoadScale:       0.1 * float64(i),
			TipDisplacement: dynamo.Available(1 + 2*0.1*float64(i)),
			TipForce:        dynamo.NoData(),
			MaxDamage:       0.05 * float64(i),
		}
		if i == 3 {
			r.TipDisplacement = dynamo.NoData()
		}
		out = append(out, r)
	}
	return out
}

func TestCurveFit(t *testing.T) {
	c := NewCurve(records(), SeriesLoad, SeriesTipDisplacement)
	if len(c.Points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(c.Points))
	}

	alpha, beta, r2 := c.Fit()
	if math.Abs(alpha-1) > 1e-9 || math.Abs(beta-2) > 1e-9 {
		t.Errorf("fit = %f + %f x, want 1 + 2 x", alpha, beta)
	}
	if math.Abs(r2-1) > 1e-9 {
		t.Errorf("r2 = %f, want 1", r2)
	}

	if got := NewCurve(records(), SeriesLoad, SeriesTipForce); len(got.Points) != 0 {
		t.Errorf("expected no points for unavailable tip force, got %d", len(got.Points))
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		series Series
		want   int
	}{
		{SeriesTime, 6},
		{SeriesTipDisplacement, 5},
		{SeriesTipForce, 0},
		{SeriesBroken, 6},
	}
	for _, tt := range tests {
		if got := Extract(records(), tt.series); len(got) != tt.want {
			t.Errorf("%s: expected %d values, got %d", tt.series, tt.want, len(got))
		}
	}
}

func TestParseSeries(t *testing.T) {
	if s, err := ParseSeries("damage"); err != nil || s != SeriesDamage {
		t.Errorf("ParseSeries(damage) = %v, %v", s, err)
	}
	if _, err := ParseSeries("energy"); err == nil {
		t.Error("expected error for unknown series")
	}
}

func TestCurveToASCII(t *testing.T) {
	c := NewCurve(records(), SeriesLoad, SeriesDamage)
	out := CurveToASCII(c, 20, 10)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines, got %d", len(lines))
	}
	if n := strings.Count(out, "•"); n == 0 || n > 6 {
		t.Errorf("expected up to 6 points, got %d", n)
	}
	if CurveToASCII(&Curve{}, 20, 10) != "" {
		t.Error("expected empty plot for empty curve")
	}
}

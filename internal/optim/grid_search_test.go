package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/peridyn/internal/config"
	"github.com/san-kum/peridyn/internal/sim"
)

// bowl scores a configuration without simulating it.
func bowl(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
	if cfg.Integration.Dt > 0.5 {
		return nil, errors.New("unstable")
	}
	v := math.Pow(cfg.Integration.Dt-0.2, 2) + math.Pow(cfg.Material.Damping-1, 2)
	return &sim.Result{Metrics: map[string]float64{"score": v}}, nil
}

func TestGridSearch(t *testing.T) {
	g, err := NewGridSearch([]string{"dt", "damping"}, [][]float64{{0.1, 0.2, 0.9}, {0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}

	base := config.DefaultConfig()
	params, best, trials, err := g.Search(context.Background(), base, bowl, "score")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if params["dt"] != 0.2 || params["damping"] != 1 || best != 0 {
		t.Errorf("best = %v (%f), want dt 0.2 damping 1", params, best)
	}
	if len(trials) != 9 {
		t.Errorf("expected 9 trials, got %d", len(trials))
	}
	failed := 0
	for _, tr := range trials {
		if tr.Err != nil {
			failed++
		}
	}
	if failed != 3 {
		t.Errorf("expected 3 failed trials, got %d", failed)
	}
	if base.Integration.Dt != config.DefaultConfig().Integration.Dt {
		t.Error("search modified the base config")
	}
}

func TestGridSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		ranges [][]float64
	}{
		{"length mismatch", []string{"dt"}, nil},
		{"unknown parameter", []string{"gravity"}, [][]float64{{1}}},
		{"empty range", []string{"dt"}, [][]float64{{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGridSearch(tt.params, tt.ranges); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGridSearch_NoSuccess(t *testing.T) {
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{0.6, 0.7}})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := g.Search(context.Background(), config.DefaultConfig(), bowl, "score"); err == nil {
		t.Error("expected error when every trial fails")
	}
}

func TestGridSearch_Cancel(t *testing.T) {
	g, err := NewGridSearch([]string{"dt"}, [][]float64{{0.1, 0.2}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := g.Search(ctx, config.DefaultConfig(), bowl, "score"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParamNames(t *testing.T) {
	names := ParamNames()
	if len(names) != len(Setters) {
		t.Fatalf("expected %d names, got %d", len(Setters), len(names))
	}
	cfg := config.DefaultConfig()
	Setters["critical_stretch"](cfg, 0.01)
	if cfg.Material.CriticalStretch != 0.01 {
		t.Error("setter did not apply")
	}
}

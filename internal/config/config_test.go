package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
	"github.com/san-kum/peridyn/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Integration.Scheme != "euler" {
		t.Errorf("expected scheme euler, got %s", cfg.Integration.Scheme)
	}
	if cfg.Integration.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Run.Steps <= 0 {
		t.Error("steps should be positive")
	}
	if _, err := cfg.Dynamo(); err != nil {
		t.Errorf("default config should convert: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("regression")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Run.Steps != 10 || cfg.Integration.Dt != 1e-3 {
		t.Errorf("unexpected regression preset %+v", cfg.Run)
	}

	cfg.Run.Steps = 99
	if GetPreset("regression").Run.Steps != 10 {
		t.Error("preset was modified through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for i := 1; i < len(presets); i++ {
		if presets[i-1] > presets[i] {
			t.Errorf("presets not sorted: %v", presets)
		}
	}
}

func TestPresetsBuild(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if _, err := cfg.Dynamo(); err != nil {
				t.Fatalf("integration config: %v", err)
			}
			m, err := cfg.BuildModel()
			if err != nil {
				t.Fatalf("build model: %v", err)
			}
			if err := m.Validate(); err != nil {
				t.Fatalf("invalid model: %v", err)
			}
			tips := 0
			for _, tip := range m.Tip {
				if tip {
					tips++
				}
			}
			if tips == 0 {
				t.Error("preset has no tip nodes")
			}
		})
	}
}

func TestRegressionBoundary(t *testing.T) {
	m, err := GetPreset("regression").BuildModel()
	if err != nil {
		t.Fatal(err)
	}

	lhs, rhs := 0, 0
	for i := 0; i < m.NumNodes(); i++ {
		switch m.DispBCTypes[i*dynamo.DOF] {
		case model.BCRamp:
			if m.DispBCValues[i*dynamo.DOF] < 0 {
				lhs++
			} else {
				rhs++
			}
			if m.DispBCTypes[i*dynamo.DOF+1] != model.BCFixed {
				t.Errorf("node %d: lateral dof not fixed", i)
			}
		}
	}
	// four columns of 25 nodes on each end
	if lhs != 100 || rhs != 100 {
		t.Errorf("expected 100 nodes per end, got %d and %d", lhs, rhs)
	}
}

func TestCantileverBoundary(t *testing.T) {
	m, err := GetPreset("cantilever").BuildModel()
	if err != nil {
		t.Fatal(err)
	}
	if m.NumForceBCNodes() == 0 {
		t.Fatal("expected force boundary nodes")
	}
	for i := 0; i < m.NumNodes(); i++ {
		if m.ForceBCTypes[i*dynamo.DOF+2] == model.ForceLoaded && !m.Tip[i] {
			t.Errorf("loaded node %d is not a tip node", i)
		}
	}
}

func TestBoundaryErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown protocol", func(c *Config) { c.Boundary.Protocol = "shear" }},
		{"zero width", func(c *Config) {
			c.Boundary.Protocol = ProtocolTension
			c.Boundary.Width = 0
		}},
		{"force dof", func(c *Config) {
			c.Boundary.Protocol = ProtocolCantilever
			c.Boundary.ForceDOF = 3
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if _, err := cfg.BuildModel(); !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}

func TestDynamo(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"unknown scheme", func(c *Config) { c.Integration.Scheme = "leapfrog" }, dynamo.ErrUnknownScheme},
		{"negative dt", func(c *Config) { c.Integration.Dt = -1 }, dynamo.ErrParameterBounds},
		{"bad reduction", func(c *Config) { c.Integration.Reduction = "tree" }, dynamo.ErrParameterBounds},
		{"adaptive defaults", func(c *Config) { c.Integration.Scheme = "heun-euler" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			d, err := cfg.Dynamo()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && d.ErrorMax != 1e-2 {
				t.Errorf("expected heun-euler error_max 1e-2, got %g", d.ErrorMax)
			}
		})
	}
}

func TestSim(t *testing.T) {
	cfg := GetPreset("cantilever").Sim()
	ramp, ok := cfg.Load.(sim.LinearRamp)
	if !ok {
		t.Fatalf("expected a linear ramp, got %T", cfg.Load)
	}
	if ramp.Increment != 1e-3 || ramp.Max != 1 {
		t.Errorf("unexpected ramp %+v", ramp)
	}
	if GetPreset("tension").Sim().Load != nil {
		t.Error("tension preset should carry no force load")
	}
}

func TestNoiseSource(t *testing.T) {
	cfg := GetPreset("stochastic")
	m, err := cfg.BuildModel()
	if err != nil {
		t.Fatal(err)
	}
	gen, err := cfg.NoiseSource(m)
	if err != nil {
		t.Fatalf("noise source: %v", err)
	}
	if gen.NumNodes() != m.NumNodes() {
		t.Errorf("expected %d noise nodes, got %d", m.NumNodes(), gen.NumNodes())
	}

	cfg.Noise.LengthScale = 0
	if _, err := cfg.NoiseSource(m); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("cantilever")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := "integration:\n  scheme: rk4\nrun:\n  steps: 5\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integration.Scheme != "rk4" || cfg.Run.Steps != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Integration.Dt != dynamo.DefaultConfig().Dt || cfg.Material.Horizon != DefaultHorizon {
		t.Error("defaults lost for unset fields")
	}
}

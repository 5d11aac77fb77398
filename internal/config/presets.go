package config

import "sort"

func tensionPlate(n int, horizon float64) *Config {
	cfg := DefaultConfig()
	h := 1.0 / float64(n)
	cfg.Mesh = MeshConfig{Nx: n, Ny: n, Nz: 1, Spacing: h, Origin: [3]float64{h / 2, h / 2, 0}}
	cfg.Material.Horizon = horizon
	cfg.Crack = CrackConfig{X: 0.5 + 1e-6, Y0: 0.35, Y1: 0.65}
	cfg.Boundary = BoundaryConfig{
		Protocol:   ProtocolTension,
		Width:      DefaultBoundaryWidth,
		RampRate:   5e-3,
		FixLateral: true,
	}
	cfg.Integration.DiagnosticDOF = 0
	return cfg
}

func regression() *Config {
	cfg := tensionPlate(25, 0.1)
	cfg.Preset = "regression"
	cfg.Run.Steps = 10
	cfg.Run.WriteInterval = 1
	return cfg
}

func tension() *Config {
	cfg := tensionPlate(40, 0.075)
	cfg.Preset = "tension"
	cfg.Run.Steps = 2000
	cfg.Run.WriteInterval = 100
	return cfg
}

func cantilever() *Config {
	cfg := DefaultConfig()
	cfg.Preset = "cantilever"
	cfg.Mesh = MeshConfig{Nx: 30, Ny: 6, Nz: 3, Spacing: 0.05}
	cfg.Material.Horizon = 0.15
	cfg.Material.Density = 1.0
	cfg.Material.Damping = 0.5
	cfg.Boundary = BoundaryConfig{
		Protocol: ProtocolCantilever,
		Width:    1.0,
		Force:    -1e-4,
		ForceDOF: 2,
	}
	cfg.Integration.Scheme = "velocity-verlet"
	cfg.Integration.DiagnosticDOF = 2
	cfg.Run.Steps = 2000
	cfg.Run.WriteInterval = 100
	cfg.Run.LoadIncrement = 1e-3
	cfg.Run.LoadMax = 1
	return cfg
}

func adaptive() *Config {
	cfg := tensionPlate(25, 0.1)
	cfg.Preset = "adaptive"
	cfg.Integration.Scheme = "dormand-prince"
	cfg.Run.Steps = 200
	cfg.Run.WriteInterval = 20
	return cfg
}

func stochastic() *Config {
	cfg := tensionPlate(16, 0.15)
	cfg.Preset = "stochastic"
	cfg.Integration.Scheme = "euler-stochastic"
	cfg.Integration.Seed = 1
	cfg.Noise = NoiseConfig{LengthScale: 0.2, Variance: 1, Amplitude: 1e-7, Jitter: DefaultNoiseJitter}
	cfg.Run.Steps = 200
	cfg.Run.WriteInterval = 20
	cfg.Run.Realisations = 4
	return cfg
}

var Presets = map[string]func() *Config{
	"regression": regression,
	"tension":    tension,
	"cantilever": cantilever,
	"adaptive":   adaptive,
	"stochastic": stochastic,
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/peridyn/internal/config"
	"github.com/san-kum/peridyn/internal/experiment"
	"github.com/san-kum/peridyn/internal/optim"
	"github.com/san-kum/peridyn/internal/sim"
	"github.com/san-kum/peridyn/internal/storage"
	"github.com/san-kum/peridyn/internal/viz"
	"github.com/spf13/cobra"
)

// loadConfig resolves the preset, then the config file, then any flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
		if len(args) > 0 {
			cfg.Preset = args[0]
		}
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q, available: %s", args[0], strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.GetPreset("regression")
	}

	flags := cmd.Flags()
	if flags.Changed("scheme") {
		cfg.Integration.Scheme = scheme
	}
	if flags.Changed("dt") {
		cfg.Integration.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Run.Steps = steps
	}
	if flags.Changed("write-interval") {
		cfg.Run.WriteInterval = writeInterval
	}
	if flags.Changed("backend") {
		cfg.Backend.Name = backend
	}
	if flags.Changed("reduction") {
		cfg.Integration.Reduction = reduction
	}
	if flags.Changed("seed") {
		cfg.Integration.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Backend.Workers = workers
	}
	if flags.Changed("realisations") {
		cfg.Run.Realisations = realisations
	}
	if flags.Changed("vtk") {
		cfg.Output.VTK = writeVTK
	}
	if flags.Changed("output") {
		cfg.Output.Dir = outputDir
	}
	return cfg, nil
}

func serveMetrics(e *experiment.Experiment, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Recorder().Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", metricsAddr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	e, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	if metricsAddr != "" {
		stop := serveMetrics(e, logger)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	fmt.Printf("running %s: %s on %s, %d nodes, %d steps\n",
		cfg.Preset, cfg.Integration.Scheme, e.BackendName(), e.Model().NumNodes(), cfg.Run.Steps)
	start := time.Now()
	var (
		results []*sim.Result
		runErr  error
	)
	if members > 1 {
		results, runErr = e.RunEnsemble(ctx, members)
	} else {
		results, runErr = e.Run(ctx)
	}
	elapsed := time.Since(start)

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		meta := storage.RunMetadata{
			Preset:  cfg.Preset,
			Scheme:  cfg.Integration.Scheme,
			Backend: e.BackendName(),
			Seed:    cfg.Integration.Seed,
			Dt:      cfg.Integration.Dt,
			Steps:   cfg.Run.Steps,
			Nodes:   e.Model().NumNodes(),
			Bonds:   e.Model().Family.Bonds(),
		}
		runID, err := store.Save(meta, res)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		title := runID
		if len(results) > 1 {
			title = fmt.Sprintf("%s (realisation %d)", runID, res.Realisation)
		}
		fmt.Println(viz.Summary(title, res))
	}
	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	// bubbletea owns the terminal, keep the log quiet unless asked
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if verbose {
		logger = newLogger()
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Output.VTK = false

	e, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	simCfg := cfg.Sim()
	m := viz.NewModel(e.Integrator(), viz.LiveConfig{
		Title:         fmt.Sprintf("%s  %s", cfg.Preset, cfg.Integration.Scheme),
		Coords:        e.Model().Coords,
		Steps:         simCfg.Steps,
		StepsPerTick:  stepsPerTick,
		MaxRejections: simCfg.MaxRejections,
		Load:          simCfg.Load,
		Magnify:       magnify,
	})

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(viz.Model); ok && fm.Err() != nil {
		return fm.Err()
	}
	return nil
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, s := range specs {
		name, list, ok := strings.Cut(s, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad parameter %q, want name=v1,v2", s)
		}
		var values []float64
		for _, field := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	if len(sweepParams) == 0 {
		return fmt.Errorf("no --param given, sweepable: %s", strings.Join(optim.ParamNames(), ", "))
	}
	logger := newLogger()
	base, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	base.Output.VTK = false
	base.Run.Realisations = 1

	names, ranges, err := parseGrid(sweepParams)
	if err != nil {
		return err
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	run := func(ctx context.Context, cfg *config.Config) (*sim.Result, error) {
		e, err := experiment.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		defer e.Close()
		results, err := e.Run(ctx)
		if err != nil {
			return nil, err
		}
		return results[0], nil
	}

	best, value, trials, err := grid.Search(ctx, base, run, sweepMetric)
	for _, t := range trials {
		fmt.Printf("  %-40s ", formatParams(t.Params))
		if t.Err != nil {
			fmt.Printf("failed: %v\n", t.Err)
			continue
		}
		fmt.Printf("%s = %.6e\n", sweepMetric, t.Value)
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nbest: %s  %s = %.6e\n", formatParams(best), sweepMetric, value)
	return nil
}

func formatParams(p map[string]float64) string {
	parts := make([]string, 0, len(p))
	for _, k := range sortedKeys(p) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, p[k]))
	}
	return strings.Join(parts, " ")
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir     string
	verbose     bool
	metricsAddr string
	// run and live
	configFile    string
	scheme        string
	dt            float64
	steps         int
	writeInterval int
	backend       string
	reduction     string
	seed          int64
	realisations  int
	members       int
	workers       int
	writeVTK      bool
	outputDir     string
	// live
	stepsPerTick int
	magnify      float64
	// plot, analyze, export
	xSeries string
	ySeries string
	outFile string
	svgDir  string
	// sweep
	sweepParams []string
	sweepMetric string
	// presets
	writeFile string
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&scheme, "scheme", "euler", "integration scheme")
	cmd.Flags().Float64Var(&dt, "dt", 1e-3, "time step, initial step for adaptive schemes")
	cmd.Flags().IntVar(&steps, "steps", 1000, "accepted steps")
	cmd.Flags().IntVar(&writeInterval, "write-interval", 100, "report every n steps")
	cmd.Flags().StringVar(&backend, "backend", "cpu", "compute backend (cpu, occa, auto)")
	cmd.Flags().StringVar(&reduction, "reduction", "inline", "force reduction (inline, buffered)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "cpu workers, 0 uses every core")
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "peridyn",
		Short:         "peridynamic fracture simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".peridyn", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().IntVar(&realisations, "realisations", 1, "independent realisations")
	runCmd.Flags().IntVar(&members, "members", 1, "run this many realisations concurrently, one device context each")
	runCmd.Flags().BoolVar(&writeVTK, "vtk", false, "write vtk files at every report")
	runCmd.Flags().StringVar(&outputDir, "output", "output", "vtk output directory")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run simulation with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&stepsPerTick, "steps-per-frame", 10, "steps advanced per frame")
	liveCmd.Flags().Float64Var(&magnify, "magnify", 100, "displacement scale of the deformed view")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run history",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&xSeries, "x", "", "plot y against this series instead of against step")
	plotCmd.Flags().StringVar(&ySeries, "y", "tip_displacement", "series to plot")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis and load-displacement fit",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&ySeries, "series", "tip_displacement", "series to analyse")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run as json, optionally svg images",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "json output file, stdout when empty")
	exportCmd.Flags().StringVar(&svgDir, "svg", "", "also write damage.svg and curve.svg into this directory")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "grid search over config parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVarP(&sweepParams, "param", "p", nil, "parameter grid, e.g. dt=1e-4,5e-4")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "max_damage", "metric to minimise")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}
	presetsCmd.Flags().StringVarP(&writeFile, "write", "w", "", "write the preset to a config file")

	schemesCmd := &cobra.Command{
		Use:   "schemes",
		Short: "list integration schemes",
		RunE:  listSchemes,
	}

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, analyzeCmd, exportCmd, sweepCmd, presetsCmd, schemesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/peridyn/internal/analysis"
	"github.com/san-kum/peridyn/internal/config"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/export"
	"github.com/san-kum/peridyn/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tSCHEME\tBACKEND\tNODES\tSTEPS\tREJECTED\tMAX DAMAGE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%.4f\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Scheme,
			run.Backend,
			run.Nodes,
			run.Stats.Steps,
			run.Stats.Rejected,
			run.Metrics["max_damage"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	y, err := analysis.ParseSeries(ySeries)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scheme: %s\n", meta.Scheme)
	fmt.Printf("records: %d\n\n", len(records))

	if xSeries != "" {
		x, err := analysis.ParseSeries(xSeries)
		if err != nil {
			return err
		}
		curve := analysis.NewCurve(records, x, y)
		if len(curve.Points) == 0 {
			return fmt.Errorf("no %s data in run %s", y, runID)
		}
		fmt.Println(analysis.CurveToASCII(curve, 60, 20))
		fmt.Printf("%s vs %s\n", y, x)
		return nil
	}

	data := analysis.Extract(records, y)
	if len(data) == 0 {
		return fmt.Errorf("no %s data in run %s", y, runID)
	}
	fmt.Println(asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(string(y)),
	))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	series, err := analysis.ParseSeries(ySeries)
	if err != nil {
		return err
	}

	fmt.Printf("analysis of %s (%s)\n\n", meta.ID, meta.Scheme)

	data := analysis.Extract(records, series)
	if len(data) > 2 && len(records) > 1 {
		// spacing of the reports, exact for fixed step schemes
		spacing := (records[len(records)-1].Time - records[0].Time) / float64(len(records)-1)
		ps := analysis.PowerSpectrum(data, spacing)
		freq, power := ps.Dominant()
		fmt.Println("frequency analysis")
		fmt.Printf("  series:             %s\n", series)
		fmt.Printf("  report spacing:     %.4e\n", spacing)
		fmt.Printf("  dominant frequency: %.4e\n", freq)
		fmt.Printf("  power:              %.4e\n\n", power)
	} else {
		fmt.Printf("not enough %s samples for a spectrum\n\n", series)
	}

	curve := analysis.NewCurve(records, analysis.SeriesLoad, series)
	if len(curve.Points) > 1 {
		alpha, beta, r2 := curve.Fit()
		fmt.Printf("linear fit %s = %.4e + %.4e * load (r² = %.4f)\n\n", series, alpha, beta, r2)
	}

	if len(meta.Metrics) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METRIC\tVALUE")
		for _, name := range sortedKeys(meta.Metrics) {
			fmt.Fprintf(w, "%s\t%.6e\n", name, meta.Metrics[name])
		}
		return w.Flush()
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := st.ExportRun(out, runID); err != nil {
		return err
	}

	if svgDir == "" {
		return nil
	}
	return exportSVG(st, runID, svgDir)
}

// exportSVG renders the final damage of a run over its deformed body and
// its load curve. The mesh is rebuilt from the run's preset.
func exportSVG(st *storage.Store, runID, dir string) error {
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cfg := config.GetPreset(meta.Preset)
	if cfg == nil {
		return fmt.Errorf("run %s: preset %q unknown, cannot rebuild mesh", runID, meta.Preset)
	}
	m, err := cfg.BuildModel()
	if err != nil {
		return err
	}
	u, damage, err := st.LoadFields(runID)
	if err != nil {
		return err
	}
	if u.NumNodes() != m.NumNodes() {
		return fmt.Errorf("run %s has %d nodes, preset %s has %d", runID, u.NumNodes(), meta.Preset, m.NumNodes())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	svg, err := export.DamageSVG(m.Coords, u, damage, magnification(m.Coords, u), 600, 400)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "damage.svg"), []byte(svg), 0644); err != nil {
		return err
	}

	records, err := st.LoadHistory(runID)
	if err != nil {
		return err
	}
	curve := analysis.NewCurve(records, analysis.SeriesLoad, analysis.SeriesTipDisplacement)
	if err := os.WriteFile(filepath.Join(dir, "curve.svg"), []byte(export.CurveSVG(curve, 600, 400, "#4488cc")), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s and %s\n", filepath.Join(dir, "damage.svg"), filepath.Join(dir, "curve.svg"))
	return nil
}

// magnification scales the largest displacement to a tenth of the body.
func magnification(coords []float64, u dynamo.Field) float64 {
	lo, hi := coords[0], coords[0]
	for i := 0; i < len(coords); i += dynamo.DOF {
		lo = min(lo, coords[i])
		hi = max(hi, coords[i])
	}
	peak := 0.0
	for i := 0; i < u.NumNodes(); i++ {
		peak = max(peak, u.NodeNorm(i))
	}
	if peak == 0 || hi == lo {
		return 1
	}
	return 0.1 * (hi - lo) / peak
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRESET\tSCHEME\tMESH\tHORIZON\tSTEPS\tPROTOCOL")
		for _, name := range config.ListPresets() {
			c := config.GetPreset(name)
			fmt.Fprintf(w, "%s\t%s\t%dx%dx%d\t%g\t%d\t%s\n",
				name, c.Integration.Scheme, c.Mesh.Nx, c.Mesh.Ny, c.Mesh.Nz,
				c.Material.Horizon, c.Run.Steps, c.Boundary.Protocol)
		}
		return w.Flush()
	}

	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset %q, available: %s", args[0], strings.Join(config.ListPresets(), ", "))
	}
	if writeFile != "" {
		if err := config.Save(writeFile, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", writeFile)
		return nil
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func listSchemes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEME\tADAPTIVE\tDYNAMIC")
	for _, s := range dynamo.Schemes {
		fmt.Fprintf(w, "%s\t%v\t%v\n", s, s.Adaptive(), s.Dynamic())
	}
	return w.Flush()
}

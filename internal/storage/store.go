package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir is the directory holding one run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunStats struct {
	Steps       int `json:"steps"`
	Rejected    int `json:"rejected"`
	Evaluations int `json:"evaluations"`
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Preset      string             `json:"preset"`
	Timestamp   time.Time          `json:"timestamp"`
	Scheme      string             `json:"scheme"`
	Backend     string             `json:"backend"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Steps       int                `json:"steps"`
	Nodes       int                `json:"nodes"`
	Bonds       int                `json:"bonds"`
	Realisation int                `json:"realisation"`
	FinalTime   float64            `json:"final_time"`
	Stats       RunStats           `json:"stats"`
	Metrics     map[string]float64 `json:"metrics"`
}

var historyHeader = []string{
	"step", "time", "dt", "load_scale", "tip_displacement", "tip_force",
	"max_damage", "broken_bonds", "rejected",
}

// Save writes metadata.json, history.csv and fields.csv for one run and
// returns its id.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", meta.Preset, now.UnixNano())
	runDir := s.Dir(runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Realisation = result.Realisation
	meta.FinalTime = result.Stats.Time
	meta.Stats = RunStats{
		Steps:       result.Stats.Steps,
		Rejected:    result.Stats.Rejected,
		Evaluations: result.Stats.Evaluations,
	}
	meta.Metrics = result.Metrics

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeHistory(filepath.Join(runDir, "history.csv"), result.Records); err != nil {
		return "", err
	}
	if err := WriteFields(filepath.Join(runDir, "fields.csv"), result.Displacement, result.Final.Damage); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatDiagnostic(d dynamo.Diagnostic) string {
	if !d.Valid {
		return ""
	}
	return formatFloat(d.Value)
}

func writeHistory(path string, records []sim.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(historyHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Step),
			formatFloat(r.Time),
			formatFloat(r.Dt),
			formatFloat(r.LoadScale),
			formatDiagnostic(r.TipDisplacement),
			formatDiagnostic(r.TipForce),
			formatFloat(r.MaxDamage),
			strconv.Itoa(r.BrokenBonds),
			strconv.Itoa(r.Rejected),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFields writes one row per node: displacement components and damage.
func WriteFields(path string, u dynamo.Field, damage []float64) error {
	if len(damage) != 0 && len(damage) != u.NumNodes() {
		return &dynamo.FieldError{Field: "damage", Want: u.NumNodes(), Got: len(damage)}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"node", "ux", "uy", "uz", "damage"}); err != nil {
		return err
	}
	for i := 0; i < u.NumNodes(); i++ {
		x, y, z := u.Node(i)
		d := 0.0
		if len(damage) > 0 {
			d = damage[i]
		}
		row := []string{strconv.Itoa(i), formatFloat(x), formatFloat(y), formatFloat(z), formatFloat(d)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every stored run, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	return records[1:], nil
}

func parseDiagnostic(s string) (dynamo.Diagnostic, error) {
	if s == "" {
		return dynamo.NoData(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return dynamo.NoData(), err
	}
	return dynamo.Available(v), nil
}

// LoadHistory reads back the reported records of a run.
func (s *Store) LoadHistory(runID string) ([]sim.Record, error) {
	path := filepath.Join(s.Dir(runID), "history.csv")
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	records := make([]sim.Record, 0, len(rows))
	for n, row := range rows {
		if len(row) != len(historyHeader) {
			return nil, fmt.Errorf("%s:%d: want %d columns, got %d", path, n+2, len(historyHeader), len(row))
		}
		var rec sim.Record
		var errs [9]error
		rec.Step, errs[0] = strconv.Atoi(row[0])
		rec.Time, errs[1] = strconv.ParseFloat(row[1], 64)
		rec.Dt, errs[2] = strconv.ParseFloat(row[2], 64)
		rec.LoadScale, errs[3] = strconv.ParseFloat(row[3], 64)
		rec.TipDisplacement, errs[4] = parseDiagnostic(row[4])
		rec.TipForce, errs[5] = parseDiagnostic(row[5])
		rec.MaxDamage, errs[6] = strconv.ParseFloat(row[6], 64)
		rec.BrokenBonds, errs[7] = strconv.Atoi(row[7])
		rec.Rejected, errs[8] = strconv.Atoi(row[8])
		for i, err := range errs {
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %s: %w", path, n+2, historyHeader[i], err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadFields reads back the final displacement and damage of a run.
func (s *Store) LoadFields(runID string) (dynamo.Field, []float64, error) {
	path := filepath.Join(s.Dir(runID), "fields.csv")
	rows, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}

	u := dynamo.NewField(len(rows))
	damage := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != 5 {
			return nil, nil, fmt.Errorf("%s:%d: want 5 columns, got %d", path, i+2, len(row))
		}
		for d := 0; d < dynamo.DOF; d++ {
			if u[i*dynamo.DOF+d], err = strconv.ParseFloat(row[1+d], 64); err != nil {
				return nil, nil, fmt.Errorf("%s:%d: %w", path, i+2, err)
			}
		}
		if damage[i], err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", path, i+2, err)
		}
	}
	return u, damage, nil
}

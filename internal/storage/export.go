package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/san-kum/peridyn/internal/sim"
)

type ExportRecord struct {
	Step            int      `json:"step"`
	Time            float64  `json:"time"`
	Dt              float64  `json:"dt"`
	LoadScale       float64  `json:"load_scale"`
	TipDisplacement *float64 `json:"tip_displacement"`
	TipForce        *float64 `json:"tip_force"`
	MaxDamage       float64  `json:"max_damage"`
	BrokenBonds     int      `json:"broken_bonds"`
	Rejected        int      `json:"rejected"`
}

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Records []ExportRecord `json:"records"`
	Damage  []float64      `json:"damage,omitempty"`
}

func optional(valid bool, v float64) *float64 {
	if !valid || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ExportJSON writes a run's metadata and history as indented JSON.
// Unavailable diagnostics are null.
func ExportJSON(w io.Writer, meta RunMetadata, records []sim.Record, damage []float64) error {
	data := ExportData{
		Run:     meta,
		Records: make([]ExportRecord, len(records)),
		Damage:  damage,
	}
	for i, r := range records {
		data.Records[i] = ExportRecord{
			Step:            r.Step,
			Time:            r.Time,
			Dt:              r.Dt,
			LoadScale:       r.LoadScale,
			TipDisplacement: optional(r.TipDisplacement.Valid, r.TipDisplacement.Value),
			TipForce:        optional(r.TipForce.Valid, r.TipForce.Value),
			MaxDamage:       r.MaxDamage,
			BrokenBonds:     r.BrokenBonds,
			Rejected:        r.Rejected,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportRun loads a stored run and exports it.
func (s *Store) ExportRun(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	records, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}
	_, damage, err := s.LoadFields(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, *meta, records, damage)
}

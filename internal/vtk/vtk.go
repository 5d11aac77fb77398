// Package vtk writes nodal fields as legacy ASCII VTK unstructured grids
// with one vertex cell per node.
package vtk

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// header, points and vertex cells
func topology(buf *bytes.Buffer, title string, coords []float64) {
	n := len(coords) / dynamo.DOF
	fmt.Fprintf(buf, "# vtk DataFile Version 2.0\n%s\nASCII\nDATASET UNSTRUCTURED_GRID\n", title)

	fmt.Fprintf(buf, "POINTS %d double\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(buf, "%23.15e %23.15e %23.15e\n", coords[i*3], coords[i*3+1], coords[i*3+2])
	}

	fmt.Fprintf(buf, "CELLS %d %d\n", n, 2*n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(buf, "1 %d\n", i)
	}
	fmt.Fprintf(buf, "CELL_TYPES %d\n", n)
	for i := 0; i < n; i++ {
		buf.WriteString("1\n")
	}
}

func scalars(buf *bytes.Buffer, name string, values []float64) {
	fmt.Fprintf(buf, "SCALARS %s double 1\nLOOKUP_TABLE default\n", name)
	for _, v := range values {
		fmt.Fprintf(buf, "%23.15e\n", v)
	}
}

func vectors(buf *bytes.Buffer, name string, f dynamo.Field) {
	fmt.Fprintf(buf, "VECTORS %s double\n", name)
	for i := 0; i < f.NumNodes(); i++ {
		x, y, z := f.Node(i)
		fmt.Fprintf(buf, "%23.15e %23.15e %23.15e\n", x, y, z)
	}
}

func check(coords []float64, damage []float64, u dynamo.Field) error {
	if len(coords)%dynamo.DOF != 0 {
		return &dynamo.FieldError{Field: "coords", Want: len(coords) / dynamo.DOF * dynamo.DOF, Got: len(coords)}
	}
	n := len(coords) / dynamo.DOF
	if damage != nil && len(damage) != n {
		return &dynamo.FieldError{Field: "damage", Want: n, Got: len(damage)}
	}
	if u != nil && len(u) != len(coords) {
		return &dynamo.FieldError{Field: "displacement", Want: len(coords), Got: len(u)}
	}
	return nil
}

// Write stores damage and displacement at the reference coordinates.
func Write(path, title string, coords, damage []float64, u dynamo.Field) error {
	if err := check(coords, damage, u); err != nil {
		return err
	}
	if damage == nil {
		damage = make([]float64, len(coords)/dynamo.DOF)
	}
	var buf bytes.Buffer
	topology(&buf, title, coords)
	fmt.Fprintf(&buf, "POINT_DATA %d\n", len(coords)/dynamo.DOF)
	scalars(&buf, "damage", damage)
	vectors(&buf, "displacement", u)
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WriteDamage stores only the damage scalar.
func WriteDamage(path, title string, coords, damage []float64) error {
	if err := check(coords, damage, nil); err != nil {
		return err
	}
	if damage == nil {
		damage = make([]float64, len(coords)/dynamo.DOF)
	}
	var buf bytes.Buffer
	topology(&buf, title, coords)
	fmt.Fprintf(&buf, "POINT_DATA %d\n", len(coords)/dynamo.DOF)
	scalars(&buf, "damage", damage)
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Observer writes U_<step>.vtk and damage_<step>.vtk on every reported
// step, under sample<r>/ for realisations after the first. The first write
// error is kept and later steps are skipped.
type Observer struct {
	dir         string
	coords      []float64
	realisation int
	written     []string
	err         error
}

func NewObserver(dir string, coords []float64) (*Observer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Observer{dir: dir, coords: coords}, nil
}

// SetRealisation changes the sample number used in file names.
func (o *Observer) SetRealisation(r int) { o.realisation = r }

func (o *Observer) OnStep(step int, t float64, u dynamo.Field, r dynamo.Report) {
	if o.err != nil {
		return
	}
	dir := o.dir
	if o.realisation > 0 {
		dir = filepath.Join(o.dir, fmt.Sprintf("sample%d", o.realisation))
		if err := os.MkdirAll(dir, 0755); err != nil {
			o.err = err
			return
		}
	}
	title := fmt.Sprintf("Solution time step = %d", step)

	upath := filepath.Join(dir, fmt.Sprintf("U_%d.vtk", step))
	if err := Write(upath, title, o.coords, r.Damage, u); err != nil {
		o.err = err
		return
	}
	dpath := filepath.Join(dir, fmt.Sprintf("damage_%d.vtk", step))
	if err := WriteDamage(dpath, title, o.coords, r.Damage); err != nil {
		o.err = err
		return
	}
	o.written = append(o.written, upath, dpath)
}

func (o *Observer) Written() []string { return o.written }
func (o *Observer) Err() error        { return o.err }

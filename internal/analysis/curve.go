package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/peridyn/internal/sim"
)

// Series names one column of the run history.
type Series string

const (
	SeriesTime            Series = "time"
	SeriesLoad            Series = "load"
	SeriesTipDisplacement Series = "tip_displacement"
	SeriesTipForce        Series = "tip_force"
	SeriesDamage          Series = "damage"
	SeriesBroken          Series = "broken"
)

var allSeries = []Series{SeriesTime, SeriesLoad, SeriesTipDisplacement, SeriesTipForce, SeriesDamage, SeriesBroken}

func ParseSeries(name string) (Series, error) {
	for _, s := range allSeries {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown series %q", name)
}

// Value extracts a series value from a record; ok is false for an
// unavailable diagnostic.
func (s Series) Value(r sim.Record) (float64, bool) {
	switch s {
	case SeriesTime:
		return r.Time, true
	case SeriesLoad:
		return r.LoadScale, true
	case SeriesTipDisplacement:
		return r.TipDisplacement.Value, r.TipDisplacement.Valid
	case SeriesTipForce:
		return r.TipForce.Value, r.TipForce.Valid
	case SeriesDamage:
		return r.MaxDamage, true
	case SeriesBroken:
		return float64(r.BrokenBonds), true
	}
	return 0, false
}

// Extract returns the available values of one series.
func Extract(records []sim.Record, s Series) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v, ok := s.Value(r); ok {
			out = append(out, v)
		}
	}
	return out
}

type Point struct{ X, Y float64 }

// Curve holds one series against another
type Curve struct {
	X, Y   Series
	Points []Point
}

// NewCurve pairs two series, skipping records where either is unavailable.
func NewCurve(records []sim.Record, x, y Series) *Curve {
	c := &Curve{X: x, Y: y, Points: make([]Point, 0, len(records))}
	for _, r := range records {
		xv, okx := x.Value(r)
		yv, oky := y.Value(r)
		if !okx || !oky {
			continue
		}
		c.Points = append(c.Points, Point{X: xv, Y: yv})
	}
	return c
}

// Fit returns the least-squares line y = alpha + beta*x and its R².
func (c *Curve) Fit() (alpha, beta, r2 float64) {
	if len(c.Points) < 2 {
		return 0, 0, 0
	}
	xs := make([]float64, len(c.Points))
	ys := make([]float64, len(c.Points))
	for i, p := range c.Points {
		xs[i], ys[i] = p.X, p.Y
	}
	alpha, beta = stat.LinearRegression(xs, ys, nil, false)
	r2 = stat.RSquared(xs, ys, nil, alpha, beta)
	return alpha, beta, r2
}

// CurveToASCII converts a curve to a scatter plot
func CurveToASCII(c *Curve, width, height int) string {
	if c == nil || len(c.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	// Find bounds
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range c.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range c.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// Draw axes if they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}

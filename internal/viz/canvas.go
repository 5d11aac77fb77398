package viz

import (
	"math"
	"strings"

	"github.com/san-kum/peridyn/internal/dynamo"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille dot canvas of Width x Height cells, 2x4 dots each.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at sub-cell coordinates (x, y).
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// bounds of the x-y projection of coords
type bounds struct{ x0, y0, sx, sy float64 }

func newBounds(coords []float64, pad float64) bounds {
	lo := [2]float64{math.Inf(1), math.Inf(1)}
	hi := [2]float64{math.Inf(-1), math.Inf(-1)}
	for i := 0; i+2 < len(coords); i += dynamo.DOF {
		for d := 0; d < 2; d++ {
			lo[d] = math.Min(lo[d], coords[i+d])
			hi[d] = math.Max(hi[d], coords[i+d])
		}
	}
	b := bounds{x0: lo[0] - pad, y0: lo[1] - pad, sx: hi[0] - lo[0] + 2*pad, sy: hi[1] - lo[1] + 2*pad}
	if b.sx <= 0 {
		b.sx = 1
	}
	if b.sy <= 0 {
		b.sy = 1
	}
	return b
}

// unit maps a point into [0, 1]^2, y up.
func (b bounds) unit(x, y float64) (float64, float64) {
	return (x - b.x0) / b.sx, 1 - (y-b.y0)/b.sy
}

// Deformed draws the x-y projection of coords + scale*u.
func (c *Canvas) Deformed(coords []float64, u dynamo.Field, scale float64) {
	c.Clear()
	b := newBounds(coords, 0.1*math.Max(1e-12, spread(coords)))
	w, h := float64(2*c.Width-1), float64(4*c.Height-1)
	for i := 0; i < len(coords)/dynamo.DOF; i++ {
		x, y := coords[i*dynamo.DOF], coords[i*dynamo.DOF+1]
		if len(u) == len(coords) {
			x += scale * u[i*dynamo.DOF]
			y += scale * u[i*dynamo.DOF+1]
		}
		ux, uy := b.unit(x, y)
		c.Set(int(math.Round(ux*w)), int(math.Round(uy*h)))
	}
}

func spread(coords []float64) float64 {
	b := newBounds(coords, 0)
	return math.Max(b.sx, b.sy)
}

var damageRamp = []rune(" .:-=+*#%@")

// DamageMap bins nodes into a w x h character grid and shades each cell by
// the largest damage inside it. Cells without nodes stay blank.
func DamageMap(coords, damage []float64, w, h int) string {
	if w < 1 || h < 1 || len(damage) == 0 {
		return ""
	}
	cells := make([][]float64, h)
	for i := range cells {
		cells[i] = make([]float64, w)
		for j := range cells[i] {
			cells[i][j] = -1
		}
	}

	b := newBounds(coords, 0)
	for i, d := range damage {
		ux, uy := b.unit(coords[i*dynamo.DOF], coords[i*dynamo.DOF+1])
		col := min(int(ux*float64(w)), w-1)
		row := min(int(uy*float64(h)), h-1)
		cells[row][col] = math.Max(cells[row][col], d)
	}

	var sb strings.Builder
	for _, row := range cells {
		for _, d := range row {
			switch {
			case d < 0:
				sb.WriteRune(' ')
			default:
				idx := 1 + int(d*float64(len(damageRamp)-2)+0.5)
				sb.WriteRune(damageRamp[min(idx, len(damageRamp)-1)])
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}

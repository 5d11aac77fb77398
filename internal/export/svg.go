// Package export renders runs as standalone SVG images.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/peridyn/internal/analysis"
	"github.com/san-kum/peridyn/internal/dynamo"
)

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

// damageColor blends green (intact) to red (fully damaged).
func damageColor(d float64) string {
	d = math.Max(0, math.Min(1, d))
	r := int(math.Round(255 * d))
	g := int(math.Round(255 * (1 - d)))
	return fmt.Sprintf("#%02x%02x44", r, g)
}

// DamageSVG draws every node at its x-y position plus magnify times its
// displacement, coloured by damage.
func DamageSVG(coords []float64, u dynamo.Field, damage []float64, magnify float64, width, height int) (string, error) {
	n := len(coords) / dynamo.DOF
	if len(damage) != n {
		return "", &dynamo.FieldError{Field: "damage", Want: n, Got: len(damage)}
	}
	if u != nil && len(u) != len(coords) {
		return "", &dynamo.FieldError{Field: "displacement", Want: len(coords), Got: len(u)}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		xs[i], ys[i] = coords[i*dynamo.DOF], coords[i*dynamo.DOF+1]
		if u != nil {
			xs[i] += magnify * u[i*dynamo.DOF]
			ys[i] += magnify * u[i*dynamo.DOF+1]
		}
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}

	// one scale for both axes keeps the body undistorted
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		span = 1
	}
	pad := 0.05 * span
	scale := float64(min(width, height)) / (span + 2*pad)
	radius := math.Max(0.5, 0.4*scale*span/math.Sqrt(float64(max(n, 1))))

	var sb strings.Builder
	header(&sb, width, height)
	sb.WriteString("<g>\n")
	for i := 0; i < n; i++ {
		cx := (xs[i] - minX + pad) * scale
		cy := float64(height) - (ys[i]-minY+pad)*scale
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, cx, cy, radius, damageColor(damage[i]))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String(), nil
}

// CurveSVG draws a curve as a polyline
func CurveSVG(c *analysis.Curve, width, height int, strokeColor string) string {
	if c == nil || len(c.Points) < 2 {
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
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	header(&sb, width, height)
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor)

	for i, p := range c.Points {
		x := (p.X - minX) / rangeX * float64(width)
		y := float64(height) - (p.Y-minY)/rangeY*float64(height)

		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	fmt.Fprintf(&sb, `"/>
<text x="8" y="%d" fill="#888899" font-family="monospace" font-size="12">%s vs %s</text>
</svg>`, height-8, c.Y, c.X)
	return sb.String()
}

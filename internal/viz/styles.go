package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/peridyn/internal/sim"
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444466")).
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	// Status indicators
	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(14)

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#444466"))

	// Sparkline bar colors
	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
)

// ProgressBar renders the completed fraction of a run.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return StatusRunning.Render(strings.Repeat("█", filled)) + Subtle.Render(strings.Repeat("░", width-filled))
}

// SparklineChart renders the last width values of a series. High values
// are drawn in the warning colour since the series shown are damage-like.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var result strings.Builder
	for _, v := range values {
		norm := (v - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))

		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(SparkMid.Render(c))
		default:
			result.WriteString(SparkLow.Render(c))
		}
	}
	return result.String()
}

func line(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

// Summary renders the outcome of a run for the terminal.
func Summary(title string, r *sim.Result) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(title) + "\n\n")
	s.WriteString(line("steps", fmt.Sprintf("%d", r.StepsTaken)))
	s.WriteString(line("time", fmt.Sprintf("%.6g", r.Stats.Time)))
	s.WriteString(line("rejected", fmt.Sprintf("%d", r.Stats.Rejected)))
	s.WriteString(line("evaluations", fmt.Sprintf("%d", r.Stats.Evaluations)))
	s.WriteString(line("next dt", fmt.Sprintf("%.3e", r.Stats.NextDt)))
	s.WriteString(line("broken bonds", fmt.Sprintf("%d / %d", r.Final.BrokenBonds, r.Final.Bonds)))
	s.WriteString(line("max damage", fmt.Sprintf("%.4f", r.Final.MaxDamage())))
	s.WriteString(line("tip disp", r.Final.TipDisplacement.String()))
	s.WriteString(line("tip force", r.Final.TipForce.String()))

	if len(r.Metrics) > 0 {
		names := make([]string, 0, len(r.Metrics))
		for name := range r.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		s.WriteString("\n" + Subtle.Render("metrics") + "\n")
		for _, name := range names {
			s.WriteString(line(name, fmt.Sprintf("%.6g", r.Metrics[name])))
		}
	}
	return Panel.Render(s.String())
}

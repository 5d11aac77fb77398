package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/integrators"
	"github.com/san-kum/peridyn/internal/sim"
)

const (
	canvasWidth     = 48
	canvasHeight    = 16
	historyCapacity = 600
	maxStepsPerTick = 4096
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(48)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// LiveConfig describes the run shown by the live view.
type LiveConfig struct {
	Title         string
	Coords        []float64
	Steps         int
	StepsPerTick  int
	MaxRejections int
	Load          sim.LoadSchedule
	Magnify       float64 // displacement scale of the deformed view
}

// Model steps an integrator from the bubbletea loop and renders the tip
// history, the damage map and the deformed body.
type Model struct {
	integ   dynamo.Integrator
	cfg     LiveConfig
	canvas  *Canvas
	step    int
	load    float64
	report  dynamo.Report
	last    dynamo.StepResult
	tips    []float64
	damage  []float64
	running bool
	showMap bool
	err     error
	started time.Time
}

func NewModel(integ dynamo.Integrator, cfg LiveConfig) Model {
	if cfg.StepsPerTick < 1 {
		cfg.StepsPerTick = 1
	}
	if cfg.Magnify == 0 {
		cfg.Magnify = 1
	}
	return Model{
		integ:   integ,
		cfg:     cfg,
		canvas:  NewCanvas(canvasWidth, canvasHeight),
		report:  integ.Report(),
		tips:    make([]float64, 0, historyCapacity),
		damage:  make([]float64, 0, historyCapacity),
		running: true,
		showMap: true,
		started: time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Done() bool { return m.step >= m.cfg.Steps }
func (m Model) Err() error { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "m":
			m.showMap = !m.showMap
		case "+", "=":
			m.cfg.StepsPerTick = min(2*m.cfg.StepsPerTick, maxStepsPerTick)
		case "-", "_":
			m.cfg.StepsPerTick = max(m.cfg.StepsPerTick/2, 1)
		}
	case TickMsg:
		if m.running && m.err == nil && !m.Done() {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for i := 0; i < m.cfg.StepsPerTick && !m.Done(); i++ {
		if m.cfg.Load != nil {
			m.load = m.cfg.Load.Scale(m.step+1, m.integ.Stats().Time)
			m.integ.IncrementLoad(m.load)
		}
		res, _, err := integrators.Advance(m.integ, m.cfg.MaxRejections)
		if err != nil {
			m.err = &dynamo.SimulationError{Step: m.step + 1, Time: m.integ.Stats().Time, Wrapped: err}
			break
		}
		m.last = res
		m.step++
	}

	m.report = m.integ.Report()
	m.push(&m.tips, m.report.TipDisplacement.Or(0))
	m.push(&m.damage, m.report.MaxDamage())
}

func (m *Model) push(series *[]float64, v float64) {
	*series = append(*series, v)
	if len(*series) > historyCapacity {
		*series = (*series)[1:]
	}
}

func (m *Model) reset() {
	if err := m.integ.Reset(m.cfg.Steps); err != nil {
		m.err = err
		return
	}
	m.step = 0
	m.load = 0
	m.err = nil
	m.tips = m.tips[:0]
	m.damage = m.damage[:0]
	m.report = m.integ.Report()
	m.started = time.Now()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED")
	case m.Done():
		return StatusRunning.Render("DONE")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("RUNNING")
}

func (m Model) View() string {
	var body string
	if m.showMap {
		body = DamageMap(m.cfg.Coords, m.report.Damage, canvasWidth, canvasHeight)
	} else {
		m.canvas.Deformed(m.cfg.Coords, m.integ.Displacement(), m.cfg.Magnify)
		body = m.canvas.String()
	}
	canvasView := canvasStyle.Render(body)

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.cfg.Title)) + "\n")
	s.WriteString(m.status() + "  " + ProgressBar(float64(m.step)/float64(max(m.cfg.Steps, 1)), 20) + "\n")
	if m.err != nil {
		s.WriteString(StatusFailed.Render(m.err.Error()) + "\n")
	}

	if len(m.tips) > 1 {
		chart := asciigraph.Plot(m.tips, asciigraph.Height(6), asciigraph.Width(32), asciigraph.Caption("tip displacement"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	st := m.integ.Stats()
	s.WriteString(line("step", fmt.Sprintf("%d / %d", m.step, m.cfg.Steps)))
	s.WriteString(line("time", fmt.Sprintf("%.4e", st.Time)))
	s.WriteString(line("dt", fmt.Sprintf("%.3e", m.last.Dt)))
	s.WriteString(line("rejected", fmt.Sprintf("%d", st.Rejected)))
	s.WriteString(line("load", fmt.Sprintf("%.3f", m.load)))
	s.WriteString(line("broken", fmt.Sprintf("%d / %d", m.report.BrokenBonds, m.report.Bonds)))
	s.WriteString(line("max damage", fmt.Sprintf("%.4f", m.report.MaxDamage())))
	s.WriteString(line("tip force", m.report.TipForce.String()))
	s.WriteString(MetricLabel.Render("damage") + SparklineChart(m.damage, 30) + "\n")
	s.WriteString(line("steps/tick", fmt.Sprintf("%d", m.cfg.StepsPerTick)))

	s.WriteString(helpStyle.Render("SP:Pause R:Reset M:Map/Shape +/-:Speed Q:Quit"))
	statsView := statsStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

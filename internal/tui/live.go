// Package tui is the live terminal view of a muscle simulation.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/experiment"
)

const historyCapacity = 600

var (
	chartStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 2)
	statsStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	activeParamStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model steps an experiment on a timer and plots force as it goes.
type Model struct {
	name       string
	dyn        dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	names      []string
	initial    dynamo.State
	state      dynamo.State
	dt         float64
	steps      int
	step       int
	perTick    int
	running    bool
	err        error

	forceIdx int
	force    []float64
	peak     float64

	params        map[string]float64
	initialParams map[string]float64
	paramKeys     []string
	selected      int
}

// NewModel takes a built experiment. perTick integration steps are taken
// per frame.
func NewModel(exp *experiment.Experiment, perTick int) Model {
	sim := exp.Simulator()
	sys := exp.System()
	if perTick < 1 {
		perTick = 1
	}

	params := make(map[string]float64)
	initialParams := make(map[string]float64)
	for k, v := range sys.GetParams() {
		params[k] = v
		initialParams[k] = v
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := sys.StateNames()
	forceIdx := 1
	for i, n := range names {
		if n == "F" || strings.HasPrefix(n, "F_") {
			forceIdx = i
		}
	}

	x0 := sys.RestState()
	return Model{
		name:          exp.Model().String(),
		dyn:           sys,
		integrator:    sim.Integrator(),
		controller:    sim.Controller(),
		names:         names,
		initial:       x0.Clone(),
		state:         x0.Clone(),
		dt:            exp.SimConfig().Dt,
		steps:         exp.SimConfig().StepCount(),
		perTick:       perTick,
		running:       true,
		forceIdx:      forceIdx,
		force:         []float64{x0[forceIdx]},
		params:        params,
		initialParams: initialParams,
		paramKeys:     keys,
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

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
		case "tab":
			if len(m.paramKeys) > 0 {
				m.selected = (m.selected + 1) % len(m.paramKeys)
			}
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		}
	case TickMsg:
		if m.running && !m.done() {
			for i := 0; i < m.perTick && !m.done(); i++ {
				m.advance()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) done() bool { return m.step >= m.steps || m.err != nil }

func (m *Model) advance() {
	t := float64(m.step) * m.dt
	u := m.controller.Compute(m.state, t)

	var next dynamo.State
	if f, ok := m.integrator.(dynamo.FallibleIntegrator); ok {
		var err error
		if next, err = f.TryStep(m.dyn, m.state, u, t, m.dt); err != nil {
			m.err = err
			return
		}
	} else {
		next = m.integrator.Step(m.dyn, m.state, u, t, m.dt)
	}
	if !next.IsValid() {
		m.err = dynamo.ErrInvalidState
		return
	}

	m.state = next
	m.step++

	f := next[m.forceIdx]
	if f > m.peak {
		m.peak = f
	}
	m.force = append(m.force, f)
	if len(m.force) > historyCapacity {
		m.force = m.force[1:]
	}
}

func (m *Model) adjustParam(factor float64) {
	if len(m.paramKeys) == 0 {
		return
	}
	c, ok := m.dyn.(dynamo.Configurable)
	if !ok {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.params[key] * factor
	if err := c.SetParam(key, val); err != nil {
		m.err = err
		return
	}
	m.params[key] = val
}

// reset restarts the run from rest with the original constants.
func (m *Model) reset() {
	if c, ok := m.dyn.(dynamo.Configurable); ok {
		for k, v := range m.initialParams {
			m.params[k] = v
			_ = c.SetParam(k, v)
		}
	}
	m.state = m.initial.Clone()
	m.step = 0
	m.peak = 0
	m.err = nil
	m.force = append(m.force[:0], m.initial[m.forceIdx])
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return "ERROR: " + m.err.Error()
	case m.done():
		return "DONE"
	case !m.running:
		return "PAUSED"
	}
	return "RUNNING"
}

func (m Model) View() string {
	chart := "waiting for samples"
	if len(m.force) > 1 {
		chart = asciigraph.Plot(m.force,
			asciigraph.Height(16),
			asciigraph.Width(70),
			asciigraph.Caption("force (N)"),
		)
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(m.status() + "\n\n")
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.3fs", float64(m.step)*m.dt)) + "\n")
	s.WriteString(labelStyle.Render("Peak") + valueStyle.Render(fmt.Sprintf("%.2f N", m.peak)) + "\n")
	for i, n := range m.names {
		s.WriteString(labelStyle.Render(n) + valueStyle.Render(fmt.Sprintf("%.5g", m.state[i])) + "\n")
	}

	s.WriteString("\nPARAMETERS\n")
	if len(m.paramKeys) == 0 {
		s.WriteString(labelStyle.Render("  (none)") + "\n")
	}
	for i, k := range m.paramKeys {
		ratio := 1.0
		if initial := m.initialParams[k]; initial != 0 {
			ratio = m.params[k] / (2 * initial)
		}
		ratio = max(0, min(1, ratio))
		const barWidth = 10
		filled := int(ratio * barWidth)
		bar := "[" + strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled) + "]"
		line := fmt.Sprintf("%-18s %s %.4g", k, bar, m.params[k])
		if i == m.selected {
			s.WriteString(activeParamStyle.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + labelStyle.UnsetWidth().Render(line) + "\n")
		}
	}
	s.WriteString(helpStyle.Render("SP:Pause R:Reset Q:Quit\nTab:Param ↑↓:Tune ±5%"))

	return lipgloss.JoinHorizontal(lipgloss.Top, chartStyle.Render(chart), statsStyle.Render(s.String()))
}

// Run starts the program and blocks until the user quits.
func Run(exp *experiment.Experiment, perTick int) error {
	_, err := tea.NewProgram(NewModel(exp, perTick)).Run()
	return err
}

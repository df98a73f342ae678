package tui

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/experiment"
)

func newModel(t *testing.T, perTick int) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.IVP.NShooting = 30
	exp, err := experiment.Build(cfg, experiment.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(exp, perTick)
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTicksAdvanceUntilDone(t *testing.T) {
	m := newModel(t, 4)
	for i := 0; i < 10; i++ {
		m = send(m, TickMsg(time.Now()))
	}

	if m.step != 30 || !m.done() {
		t.Errorf("step = %d after 10 ticks of 4", m.step)
	}
	if len(m.force) != 31 || m.peak <= 0 {
		t.Errorf("%d force samples, peak %v", len(m.force), m.peak)
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view does not report a finished run")
	}
}

func TestPauseAndReset(t *testing.T) {
	m := newModel(t, 5)
	m = send(m, TickMsg(time.Now()))
	m = send(m, key(" "))
	m = send(m, TickMsg(time.Now()))
	if m.step != 5 || m.running {
		t.Errorf("paused model stepped to %d", m.step)
	}

	m = send(m, key("r"))
	if m.step != 0 || len(m.force) != 1 || m.peak != 0 {
		t.Errorf("reset left step %d, %d samples", m.step, len(m.force))
	}
}

func TestTuneParameter(t *testing.T) {
	m := newModel(t, 1)
	key0 := m.paramKeys[m.selected]
	before := m.params[key0]

	m = send(m, key("k"))
	if got := m.params[key0]; got != before*1.05 {
		t.Errorf("%s = %v, want %v", key0, got, before*1.05)
	}
	if got := m.dyn.(interface{ GetParams() map[string]float64 }).GetParams()[key0]; got != before*1.05 {
		t.Errorf("system still has %s = %v", key0, got)
	}

	m = send(m, key("r"))
	if m.params[key0] != before {
		t.Errorf("reset did not restore %s", key0)
	}
}

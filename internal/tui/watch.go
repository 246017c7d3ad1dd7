// Package tui renders task supervision as an interactive terminal view.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/skein/internal/models"
	"github.com/fentz26/skein/internal/watch"
)

// EventMsg carries a supervisor event into the program.
type EventMsg watch.Event

// DoneMsg reports that supervision returned.
type DoneMsg struct {
	Result *watch.Result
	Err    error
}

type row struct {
	id    int
	line  string
	state models.TaskState
	shown string
}

// Model is the watch view. A key press of q or ctrl+c interrupts the
// supervisor; the view quits once the supervisor has returned.
type Model struct {
	title   string
	spinner spinner.Model
	rows    []row
	index   map[int]int
	message string
	width   int

	cancel       context.CancelFunc
	interrupting bool
	result       *watch.Result
	err          error
}

// NewModel creates the view. cancel stops the supervisor.
func NewModel(title string, cancel context.CancelFunc) *Model {
	return &Model{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		index:   map[int]int{},
		cancel:  cancel,
	}
}

// Result returns what the supervisor returned, once it has.
func (m *Model) Result() (*watch.Result, error) {
	return m.result, m.err
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel == nil || m.result != nil || m.err != nil {
				return m, tea.Quit
			}
			if !m.interrupting {
				m.interrupting = true
				m.message = "Interrupting..."
				m.cancel()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.observe(watch.Event(msg))

	case DoneMsg:
		m.result, m.err = msg.Result, msg.Err
		if msg.Err != nil {
			m.message = "Error: " + msg.Err.Error()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) observe(e watch.Event) {
	switch e.Kind {
	case watch.EventFirstSeen, watch.EventTransition, watch.EventDiscovered:
		i, ok := m.index[e.Task.ID]
		if !ok {
			m.index[e.Task.ID] = len(m.rows)
			m.rows = append(m.rows, row{id: e.Task.ID})
			i = len(m.rows) - 1
		}
		r := &m.rows[i]
		r.line, r.state = e.Line, e.Task.State
		if e.To != "" {
			r.shown = e.To
		}
	case watch.EventStarted, watch.EventDone:
		m.message = e.Message()
	case watch.EventInterrupted:
		m.message = "Tasks still running. You can continue to watch with the 'skein watch' command."
	}
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title) + "\n\n")

	if len(m.rows) == 0 {
		b.WriteString(fmt.Sprintf("  %s waiting for tasks\n", m.spinner.View()))
	}
	for _, r := range m.rows {
		marker := "  "
		if !r.state.IsTerminal() && m.result == nil {
			marker = m.spinner.View() + " "
		}
		shown := r.shown
		if shown == "" {
			shown = "discovered"
		}
		b.WriteString(fmt.Sprintf("%s%s: %s\n", marker, r.line, stateStyle(r.state).Render(shown)))
	}

	if m.message != "" {
		b.WriteString("\n" + m.message + "\n")
	}
	b.WriteString("\n")

	status := fmt.Sprintf(" Tasks: %d | q:interrupt", len(m.rows))
	if m.result != nil {
		status = fmt.Sprintf(" Tasks: %d | %s", len(m.rows), m.result.Verdict)
	}
	if m.width > 0 {
		b.WriteString(statusBarStyle.Width(m.width).Render(status))
	} else {
		b.WriteString(statusBarStyle.Render(status))
	}
	b.WriteString("\n" + helpStyle.Render(" the view closes when every task has finished"))
	return b.String()
}

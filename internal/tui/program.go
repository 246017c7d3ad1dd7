package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/skein/internal/watch"
)

// SuperviseFunc runs a supervisor that reports to obs.
type SuperviseFunc func(ctx context.Context, obs watch.Observer) (*watch.Result, error)

// Observer forwards supervisor events to a running program.
func Observer(p *tea.Program) watch.Observer {
	return watch.ObserverFunc(func(e watch.Event) {
		p.Send(EventMsg(e))
	})
}

// Watch runs supervise behind the watch view and returns its result.
func Watch(ctx context.Context, title string, supervise SuperviseFunc, opts ...tea.ProgramOption) (*watch.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(title, cancel)
	p := tea.NewProgram(m, opts...)
	done := make(chan DoneMsg, 1)
	go func() {
		res, err := supervise(ctx, Observer(p))
		done <- DoneMsg{Result: res, Err: err}
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	_, runErr := p.Run()
	// The program may quit on its own, e.g. on SIGINT; stop the
	// supervisor and wait for it either way.
	cancel()
	msg := <-done
	if runErr != nil && msg.Err == nil {
		return msg.Result, runErr
	}
	return msg.Result, msg.Err
}

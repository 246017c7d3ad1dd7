package watch

import (
	"fmt"
	"io"
	"strings"

	"github.com/fentz26/skein/internal/audit"
	"github.com/fentz26/skein/internal/models"
	"github.com/sirupsen/logrus"
)

// EventKind identifies what happened to a tracked task.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFirstSeen
	EventTransition
	EventDiscovered
	EventInterrupted
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFirstSeen:
		return "first_seen"
	case EventTransition:
		return "transition"
	case EventDiscovered:
		return "discovered"
	case EventInterrupted:
		return "interrupted"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// Event is emitted by the supervisor as it observes tasks.
type Event struct {
	Kind EventKind
	Task models.Task
	// Line is the task's indented rendering.
	Line string
	From string
	To   string
	// Running holds "task: state" lines for EventInterrupted.
	Running []string
	Verdict Verdict
	Count   int
}

// Message renders the event for an operator.
func (e Event) Message() string {
	switch e.Kind {
	case EventStarted:
		return "Watching tasks (this may be safely interrupted)..."
	case EventFirstSeen:
		return fmt.Sprintf("%s: %s", e.Line, e.To)
	case EventTransition:
		return fmt.Sprintf("%s: %s -> %s", e.Line, e.From, e.To)
	case EventDiscovered:
		return fmt.Sprintf("%s: discovered", e.Line)
	case EventInterrupted:
		return "Tasks still running. You can continue to watch with the 'skein watch' command. Running Tasks:\n" +
			strings.Join(e.Running, "\n")
	case EventDone:
		return fmt.Sprintf("%d tasks finished: %s", e.Count, e.Verdict)
	}
	return ""
}

// Observer receives supervisor events. Observe is called from the
// supervising goroutine and must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Multi fans events out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var list []Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(e Event) {
		for _, o := range list {
			o.Observe(e)
		}
	})
}

// LogObserver prints events to out and mirrors them to the logger.
type LogObserver struct {
	out io.Writer
	log logrus.FieldLogger
}

// NewLogObserver creates a LogObserver. A nil out only logs.
func NewLogObserver(out io.Writer, log logrus.FieldLogger) *LogObserver {
	return &LogObserver{out: out, log: log}
}

func (o *LogObserver) Observe(e Event) {
	msg := e.Message()
	entry := o.log.WithField("event", e.Kind.String())
	if e.Task.ID != 0 {
		entry = entry.WithField("task_id", e.Task.ID)
	}
	if e.Kind == EventDiscovered {
		entry.Debug(msg)
		return
	}
	entry.Info(msg)
	if o.out != nil {
		if e.Kind == EventDone || e.Kind == EventInterrupted {
			fmt.Fprintln(o.out)
		}
		fmt.Fprintln(o.out, msg)
	}
}

// TaskRecorder persists observed tasks.
type TaskRecorder interface {
	SaveTask(task models.Task) error
	RecordTransition(taskID int, from, to models.TaskState) (*models.Transition, error)
}

// StoreObserver persists tasks and transitions and audits terminal states.
type StoreObserver struct {
	store TaskRecorder
	pdr   *audit.PDRWriter
	log   logrus.FieldLogger
}

// NewStoreObserver creates a StoreObserver.
func NewStoreObserver(store TaskRecorder, pdr *audit.PDRWriter, log logrus.FieldLogger) *StoreObserver {
	return &StoreObserver{store: store, pdr: pdr, log: log}
}

func (o *StoreObserver) Observe(e Event) {
	switch e.Kind {
	case EventFirstSeen, EventTransition, EventDiscovered:
	default:
		return
	}
	entry := o.log.WithField("task_id", e.Task.ID)
	if err := o.store.SaveTask(e.Task); err != nil {
		entry.WithError(err).Warn("failed to save task")
		return
	}
	if e.Kind == EventTransition {
		if _, err := o.store.RecordTransition(e.Task.ID, e.Task.LastState, e.Task.State); err != nil {
			entry.WithError(err).Warn("failed to record transition")
		}
	}
	if e.Kind != EventDiscovered && e.Task.State.IsTerminal() {
		outcome := "success"
		if e.Task.State != models.TaskStateClosed {
			outcome = "failure"
		}
		if _, err := o.pdr.Record("task.finish", map[string]interface{}{
			"task_id": e.Task.ID,
			"state":   e.Task.State.String(),
		}, outcome, fmt.Sprintf("%d", e.Task.ID), e.To); err != nil {
			entry.WithError(err).Warn("failed to write audit record")
		}
	}
}

// Package watch supervises trees of remote build tasks until every task
// reaches a terminal state.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/skein/internal/koji"
	"github.com/fentz26/skein/internal/models"
	"github.com/sirupsen/logrus"
)

// Verdict is the overall outcome of a supervised run.
type Verdict int

const (
	Success Verdict = iota
	Failure
)

func (v Verdict) String() string {
	if v == Success {
		return "SUCCESS"
	}
	return "FAILURE"
}

// Result is returned by Supervise.
type Result struct {
	Verdict     Verdict
	Interrupted bool
	Passes      int
	Tasks       []models.Task
	// Running lists the tasks still running when supervision was interrupted.
	Running []models.Task
}

// ExitCode maps the verdict to a process exit status.
func (r *Result) ExitCode() int {
	if r == nil || r.Verdict == Failure {
		return 1
	}
	return 0
}

// Supervisor polls the hub for a set of tasks and their descendants.
type Supervisor struct {
	session  koji.Session
	observer Observer
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// New creates a supervisor. A nil observer discards events.
func New(session koji.Session, observer Observer, interval time.Duration, log logrus.FieldLogger) *Supervisor {
	if observer == nil {
		observer = ObserverFunc(func(Event) {})
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Supervisor{
		session:  session,
		observer: observer,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Supervise watches ids until every tracked task is terminal, the hub reports
// an unknown id, or ctx is cancelled. Cancellation is only noticed between
// passes and never changes the verdict.
func (s *Supervisor) Supervise(ctx context.Context, ids []int) (*Result, error) {
	set := NewTaskSet()
	for _, id := range ids {
		set.Add(id, 0, 0)
	}
	res := &Result{Verdict: Success}
	if set.Len() == 0 {
		return res, nil
	}

	s.log.WithField("tasks", ids).Info("watching tasks")
	s.observer.Observe(Event{Kind: EventStarted})

	for {
		if ctx.Err() != nil {
			return s.interrupt(set, res), nil
		}
		res.Passes++
		done, err := s.pass(set, res)
		if err != nil {
			res.Verdict = Failure
			res.Tasks = set.Tasks()
			return res, err
		}
		if done {
			break
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.interrupt(set, res), nil
		case <-timer.C:
		}
	}

	res.Tasks = set.Tasks()
	s.log.WithFields(logrus.Fields{
		"verdict": res.Verdict.String(),
		"tasks":   len(res.Tasks),
		"passes":  res.Passes,
	}).Info("tasks finished")
	s.observer.Observe(Event{Kind: EventDone, Verdict: res.Verdict, Count: len(res.Tasks)})
	return res, nil
}

// pass visits a snapshot of the unsettled tasks. It reports true when every
// task is terminal and no children were discovered.
func (s *Supervisor) pass(set *TaskSet, res *Result) (bool, error) {
	done := true
	for _, id := range set.Pending() {
		r := set.Get(id)
		if err := s.poll(r); err != nil {
			return false, err
		}
		s.settle(r, res)
		found, err := s.discover(set, r, res)
		if err != nil {
			return false, err
		}
		if found || !r.Done() {
			done = false
		}
	}
	return done, nil
}

// poll refreshes a non-terminal record from the hub.
func (s *Supervisor) poll(r *Record) error {
	if r.Done() {
		return nil
	}
	info, ok, err := s.session.GetTaskInfo(r.ID, true)
	if err != nil {
		return fmt.Errorf("task %d: %w", r.ID, err)
	}
	if !ok {
		s.log.WithField("task_id", r.ID).Error("no such task id")
		return fmt.Errorf("%w: %d", ErrUnknownTask, r.ID)
	}

	last := r.State
	r.info = info
	r.LastState = last
	r.State = info.State
	r.UpdatedAt = s.now()
	if label := info.Label(); label != "" {
		r.Label = label
	}

	if last != models.TaskStateUnseen && last == r.State {
		return nil
	}
	from := r.shown
	r.shown = s.describe(r)
	if last == models.TaskStateUnseen {
		s.observer.Observe(Event{Kind: EventFirstSeen, Task: r.Task, Line: r.String(), To: r.shown})
		return nil
	}
	s.observer.Observe(Event{Kind: EventTransition, Task: r.Task, Line: r.String(), From: from, To: r.shown})
	return nil
}

// settle folds a terminal record into the verdict, once.
func (s *Supervisor) settle(r *Record, res *Result) {
	if !r.Done() || r.counted {
		return
	}
	r.counted = true
	if !r.Success() {
		res.Verdict = Failure
	}
}

// discover queries the children of r and seeds every new one with a single
// info query. Children found terminal on that first query are expanded the
// same way. It reports whether any new task was added.
func (s *Supervisor) discover(set *TaskSet, r *Record, res *Result) (bool, error) {
	children, err := s.session.GetTaskChildren(r.ID)
	if err != nil {
		return false, fmt.Errorf("task %d children: %w", r.ID, err)
	}
	if r.Done() {
		r.settled = true
	}

	found := false
	for _, c := range children {
		child, added := set.Add(c.ID, r.ID, r.Depth+1)
		if !added {
			continue
		}
		found = true
		s.log.WithFields(logrus.Fields{"task_id": c.ID, "parent_id": r.ID}).Debug("discovered child task")
		s.observer.Observe(Event{Kind: EventDiscovered, Task: child.Task, Line: child.String()})

		if err := s.poll(child); err != nil {
			return found, err
		}
		s.settle(child, res)
		if child.Done() {
			if _, err := s.discover(set, child, res); err != nil {
				return found, err
			}
		}
	}
	return found, nil
}

func (s *Supervisor) interrupt(set *TaskSet, res *Result) *Result {
	res.Interrupted = true
	res.Tasks = set.Tasks()
	var lines []string
	for _, r := range set.Running() {
		res.Running = append(res.Running, r.Task)
		lines = append(lines, fmt.Sprintf("%s: %s", r.String(), s.describe(r)))
	}
	s.log.WithField("running", len(res.Running)).Info("supervision interrupted, tasks still running")
	s.observer.Observe(Event{Kind: EventInterrupted, Running: lines, Verdict: res.Verdict})
	return res
}

// describe renders the state of r for operators, asking the hub for the host
// of open tasks and the fault of failed ones.
func (s *Supervisor) describe(r *Record) string {
	switch r.State {
	case models.TaskStateOpen:
		if r.info != nil && r.info.HostID != 0 {
			host, err := s.session.GetHost(r.info.HostID)
			if err != nil {
				s.log.WithError(err).WithField("host_id", r.info.HostID).Warn("host lookup failed")
			} else if host != nil {
				return fmt.Sprintf("open (%s)", host.Name)
			}
		}
		return "open"
	case models.TaskStateFailed:
		if r.failure == "" {
			r.failure = s.failure(r.ID)
		}
		if r.failure == "" {
			return "FAILED"
		}
		return "FAILED: " + r.failure
	}
	return describeState(r.State)
}

func (s *Supervisor) failure(id int) string {
	err := s.session.GetTaskResult(id)
	if err == nil {
		return ""
	}
	var fault *koji.Fault
	if errors.As(err, &fault) {
		return fault.Error()
	}
	return err.Error()
}

func describeState(state models.TaskState) string {
	if state == models.TaskStateUnseen {
		return "unknown"
	}
	return strings.ToLower(state.String())
}

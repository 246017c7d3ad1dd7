package watch

import (
	"fmt"
	"strings"

	"github.com/fentz26/skein/internal/koji"
	"github.com/fentz26/skein/internal/models"
)

// Record is the supervisor's view of one tracked task.
type Record struct {
	models.Task

	info    *koji.TaskInfo
	shown   string
	failure string

	// settled is set once the task is terminal and its children were queried.
	settled bool
	counted bool
}

func newRecord(id, parent, depth int) *Record {
	return &Record{Task: models.Task{
		ID:        id,
		ParentID:  parent,
		Depth:     depth,
		State:     models.TaskStateUnseen,
		LastState: models.TaskStateUnseen,
	}}
}

// Done reports whether the task reached a terminal state.
func (r *Record) Done() bool {
	return r.State.IsTerminal()
}

// Success reports whether the task closed cleanly.
func (r *Record) Success() bool {
	return r.State == models.TaskStateClosed
}

// String renders the task indented by depth, followed by its label once known.
func (r *Record) String() string {
	indent := strings.Repeat("  ", r.Depth)
	if r.Label == "" {
		return fmt.Sprintf("%s%d", indent, r.ID)
	}
	return fmt.Sprintf("%s%d %s", indent, r.ID, r.Label)
}

// TaskSet holds records in discovery order, indexed by id. Records are
// never removed.
type TaskSet struct {
	records []*Record
	index   map[int]int
}

// NewTaskSet returns an empty set.
func NewTaskSet() *TaskSet {
	return &TaskSet{index: make(map[int]int)}
}

// Add inserts a fresh UNSEEN record. It returns the existing record and false
// when id is already tracked.
func (ts *TaskSet) Add(id, parent, depth int) (*Record, bool) {
	if i, ok := ts.index[id]; ok {
		return ts.records[i], false
	}
	r := newRecord(id, parent, depth)
	ts.index[id] = len(ts.records)
	ts.records = append(ts.records, r)
	return r, true
}

// Get returns the record for id, or nil.
func (ts *TaskSet) Get(id int) *Record {
	if i, ok := ts.index[id]; ok {
		return ts.records[i]
	}
	return nil
}

// Len returns the number of tracked tasks.
func (ts *TaskSet) Len() int {
	return len(ts.records)
}

// Pending returns a snapshot of the ids that still need attention.
func (ts *TaskSet) Pending() []int {
	var ids []int
	for _, r := range ts.records {
		if !r.settled {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Running returns the records that have not reached a terminal state.
func (ts *TaskSet) Running() []*Record {
	var out []*Record
	for _, r := range ts.records {
		if !r.Done() {
			out = append(out, r)
		}
	}
	return out
}

// Tasks returns a copy of every tracked task in discovery order.
func (ts *TaskSet) Tasks() []models.Task {
	out := make([]models.Task, len(ts.records))
	for i, r := range ts.records {
		out[i] = r.Task
	}
	return out
}

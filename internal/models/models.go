// Package models defines the core domain types for skein.
package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskState is the state of a remote build task as reported by the build hub.
// The numeric values match the hub's TASK_STATES enumeration.
type TaskState int

const (
	// TaskStateUnseen is a local placeholder used before the first successful
	// info query. The hub never reports it.
	TaskStateUnseen TaskState = -1

	TaskStateFree     TaskState = 0
	TaskStateOpen     TaskState = 1
	TaskStateClosed   TaskState = 2
	TaskStateCanceled TaskState = 3
	TaskStateAssigned TaskState = 4
	TaskStateFailed   TaskState = 5
)

var taskStateNames = map[TaskState]string{
	TaskStateUnseen:   "UNSEEN",
	TaskStateFree:     "FREE",
	TaskStateOpen:     "OPEN",
	TaskStateClosed:   "CLOSED",
	TaskStateCanceled: "CANCELED",
	TaskStateAssigned: "ASSIGNED",
	TaskStateFailed:   "FAILED",
}

func (s TaskState) String() string {
	if name, ok := taskStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE(%d)", int(s))
}

// IsTerminal reports whether no further transitions are expected.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateClosed, TaskStateCanceled, TaskStateFailed:
		return true
	}
	return false
}

// ParseTaskState converts a state name (any case) back into a TaskState.
func ParseTaskState(name string) (TaskState, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range taskStateNames {
		if n == upper {
			return s, nil
		}
	}
	return TaskStateUnseen, fmt.Errorf("unknown task state %q", name)
}

// Task is one unit of remote build work tracked by id.
type Task struct {
	ID        int       `json:"id"`
	ParentID  int       `json:"parent_id,omitempty"` // 0 for root tasks
	Depth     int       `json:"depth"`
	State     TaskState `json:"state"`
	LastState TaskState `json:"last_state"`
	Label     string    `json:"label,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transition is a recorded change between two observed task states.
type Transition struct {
	ID         string    `json:"id"`
	TaskID     int       `json:"task_id"`
	From       TaskState `json:"from"`
	To         TaskState `json:"to"`
	ObservedAt time.Time `json:"observed_at"`
}

// Package holds the metadata read from a source package header.
type Package struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Release       string   `json:"release"`
	Summary       string   `json:"summary"`
	URL           string   `json:"url"`
	Sources       []string `json:"sources"`
	Patches       []string `json:"patches"`
	BuildRequires []string `json:"build_requires"`
}

// NVR returns the name-version-release triple.
func (p *Package) NVR() string {
	return fmt.Sprintf("%s-%s-%s", p.Name, p.Version, p.Release)
}

// ImportStatus represents the outcome of importing one source package.
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// ImportRecord is the history entry for one import of one source package.
type ImportRecord struct {
	ID        string       `json:"id"`
	Path      string       `json:"path"`
	Package   string       `json:"package,omitempty"`
	NVR       string       `json:"nvr,omitempty"`
	Status    ImportStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// RequestState is the lifecycle state of a repository request.
type RequestState string

const (
	RequestStateOpen   RequestState = "open"
	RequestStateClosed RequestState = "closed"
)

// RepoRequest asks for a new package repository to be created.
type RepoRequest struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Summary   string       `json:"summary"`
	URL       string       `json:"url"`
	Owner     string       `json:"owner"`
	Reason    string       `json:"reason"`
	State     RequestState `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Subject    string    `json:"subject,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

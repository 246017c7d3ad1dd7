// Package kojitest provides a scriptable in-memory build hub for tests.
package kojitest

import (
	"fmt"
	"sync"

	"github.com/fentz26/skein/internal/koji"
	"github.com/fentz26/skein/internal/models"
)

// Hub is a fake koji.Session. Each task follows a script of states, one per
// info query; the last state sticks. Children become visible once the parent
// has been queried at least ChildrenAfter[id] times.
type Hub struct {
	mu sync.Mutex

	Scripts       map[int][]models.TaskState
	Children      map[int][]int
	ChildrenAfter map[int]int
	Hosts         map[int]int // task id -> host id
	HostNames     map[int]string
	Results       map[int]error
	Methods       map[int]string

	Targets  map[string]*koji.BuildTarget
	Tags     map[string]*koji.Tag
	Packages map[string]map[string]string // tag -> package -> owner

	NextTaskID int
	Submitted  []Submission
	LoginErr   error
	SubmitErr  error

	infoCalls     map[int]int
	childrenCalls map[int]int
	LoggedIn      bool
	Logouts       int
}

// Submission records a SubmitBuild call.
type Submission struct {
	Source   string
	Target   string
	Priority int
	TaskID   int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		Scripts:       map[int][]models.TaskState{},
		Children:      map[int][]int{},
		ChildrenAfter: map[int]int{},
		Hosts:         map[int]int{},
		HostNames:     map[int]string{},
		Results:       map[int]error{},
		Methods:       map[int]string{},
		Targets:       map[string]*koji.BuildTarget{},
		Tags:          map[string]*koji.Tag{},
		Packages:      map[string]map[string]string{},
		NextTaskID:    1000,
		infoCalls:     map[int]int{},
		childrenCalls: map[int]int{},
	}
}

// Script sets the state sequence of a task.
func (h *Hub) Script(id int, states ...models.TaskState) *Hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Scripts[id] = states
	return h
}

// Spawn declares children of a task, visible after the parent's nth info query.
func (h *Hub) Spawn(parent, after int, children ...int) *Hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Children[parent] = append(h.Children[parent], children...)
	h.ChildrenAfter[parent] = after
	return h
}

// InfoCalls returns the number of GetTaskInfo calls made for id.
func (h *Hub) InfoCalls(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.infoCalls[id]
}

// ChildrenCalls returns the number of GetTaskChildren calls made for id.
func (h *Hub) ChildrenCalls(id int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.childrenCalls[id]
}

func (h *Hub) Login() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.LoginErr != nil {
		return h.LoginErr
	}
	h.LoggedIn = true
	return nil
}

func (h *Hub) Logout() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LoggedIn = false
	h.Logouts++
	return nil
}

func (h *Hub) SubmitBuild(source, target string, _ map[string]interface{}, priority int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SubmitErr != nil {
		return 0, h.SubmitErr
	}
	id := h.NextTaskID
	h.NextTaskID++
	h.Submitted = append(h.Submitted, Submission{Source: source, Target: target, Priority: priority, TaskID: id})
	if _, ok := h.Scripts[id]; !ok {
		h.Scripts[id] = []models.TaskState{models.TaskStateClosed}
	}
	return id, nil
}

func (h *Hub) GetTaskInfo(id int, _ bool) (*koji.TaskInfo, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	script, ok := h.Scripts[id]
	if !ok || len(script) == 0 {
		return nil, false, nil
	}
	n := h.infoCalls[id]
	h.infoCalls[id] = n + 1
	if n >= len(script) {
		n = len(script) - 1
	}
	method := h.Methods[id]
	if method == "" {
		method = "build"
	}
	return &koji.TaskInfo{
		ID:       id,
		ParentID: h.parentOf(id),
		State:    script[n],
		HostID:   h.Hosts[id],
		Method:   method,
		Arch:     "noarch",
	}, true, nil
}

func (h *Hub) parentOf(id int) int {
	for parent, kids := range h.Children {
		for _, k := range kids {
			if k == id {
				return parent
			}
		}
	}
	return 0
}

func (h *Hub) GetTaskChildren(id int) ([]koji.TaskInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.childrenCalls[id]++
	if h.infoCalls[id] < h.ChildrenAfter[id] {
		return nil, nil
	}
	var out []koji.TaskInfo
	for _, c := range h.Children[id] {
		out = append(out, koji.TaskInfo{ID: c, ParentID: id})
	}
	return out, nil
}

func (h *Hub) GetTaskResult(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Results[id]
}

func (h *Hub) GetHost(id int) (*koji.Host, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	name, ok := h.HostNames[id]
	if !ok {
		return nil, nil
	}
	return &koji.Host{ID: id, Name: name}, nil
}

func (h *Hub) GetBuildTarget(name string) (*koji.BuildTarget, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Targets[name], nil
}

func (h *Hub) GetTag(name string) (*koji.Tag, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Tags[name], nil
}

func (h *Hub) CheckTagPackage(tag, pkg string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Tags[tag]; !ok {
		return false, &koji.Fault{Code: 1003, Message: fmt.Sprintf("No such tag: %s", tag)}
	}
	_, ok := h.Packages[tag][pkg]
	return ok, nil
}

func (h *Hub) PackageListAdd(tag, pkg, owner string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Tags[tag]; !ok {
		return &koji.Fault{Code: 1003, Message: fmt.Sprintf("No such tag: %s", tag)}
	}
	if h.Packages[tag] == nil {
		h.Packages[tag] = map[string]string{}
	}
	h.Packages[tag][pkg] = owner
	return nil
}

var _ koji.Session = (*Hub)(nil)

// Package koji is the client side of the remote build hub: build submission,
// tag and target lookups, and task inspection.
package koji

import (
	"fmt"
	"path"

	"github.com/fentz26/skein/internal/models"
)

// Session is a thin synchronous handle on the build hub.
type Session interface {
	// Login authenticates the session. Sessions with no configured user stay anonymous.
	Login() error
	Logout() error

	// SubmitBuild queues a build of source into target and returns the root task id.
	SubmitBuild(source, target string, opts map[string]interface{}, priority int) (int, error)

	// GetTaskInfo returns ok == false when the hub does not know the id.
	GetTaskInfo(id int, request bool) (info *TaskInfo, ok bool, err error)
	GetTaskChildren(id int) ([]TaskInfo, error)
	// GetTaskResult returns the task's failure as an error, nil on success.
	GetTaskResult(id int) error
	GetHost(id int) (*Host, error)

	// GetBuildTarget and GetTag return nil, nil for unknown names.
	GetBuildTarget(name string) (*BuildTarget, error)
	GetTag(name string) (*Tag, error)
	CheckTagPackage(tag, pkg string) (bool, error)
	PackageListAdd(tag, pkg, owner string) error
}

// TaskInfo is the hub's view of a task.
type TaskInfo struct {
	ID       int
	ParentID int
	State    models.TaskState
	HostID   int
	Method   string
	Arch     string
	Request  []interface{}
}

// Label describes a task the way the hub's web UI does: the method plus the
// interesting request arguments.
func (t *TaskInfo) Label() string {
	if t == nil || t.Method == "" {
		return ""
	}
	args := requestStrings(t.Request)
	switch t.Method {
	case "build":
		if len(args) >= 2 {
			return fmt.Sprintf("build (%s, %s)", args[1], path.Base(args[0]))
		}
	case "buildArch":
		if len(args) >= 1 {
			return fmt.Sprintf("buildArch (%s, %s)", path.Base(args[0]), t.Arch)
		}
	case "buildSRPMFromSCM":
		if len(args) >= 1 {
			return fmt.Sprintf("buildSRPMFromSCM (%s)", args[0])
		}
	case "tagBuild", "newRepo":
		if len(args) >= 1 {
			return fmt.Sprintf("%s (%s)", t.Method, args[0])
		}
	}
	if t.Arch != "" && t.Arch != "noarch" {
		return fmt.Sprintf("%s (%s)", t.Method, t.Arch)
	}
	return t.Method
}

func requestStrings(req []interface{}) []string {
	out := make([]string, 0, len(req))
	for _, v := range req {
		s, ok := v.(string)
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

// Host is a build host.
type Host struct {
	ID   int
	Name string
}

// BuildTarget maps a target name to its build and destination tags.
type BuildTarget struct {
	Name         string
	BuildTagName string
	DestTagName  string
}

// Tag is a hub tag.
type Tag struct {
	ID     int
	Name   string
	Locked bool
}

// Package gitrepo keeps per-package working copies aligned with their
// expected origin and publishes local changes to it.
package gitrepo

import (
	"context"
	"fmt"
)

const (
	// Origin is the remote every working copy synchronises against.
	Origin = "origin"
	// BackupOrigin holds the previous origin configuration after a correction.
	BackupOrigin = "old_origin"
	// MasterRefSpec is pulled and pushed on every sync.
	MasterRefSpec = "refs/heads/master:refs/heads/master"
)

// Repository is the version-control surface the reconciler and committer need.
type Repository interface {
	Path() string

	// RemoteURL returns "" when the remote does not exist.
	RemoteURL(name string) (string, error)
	CreateRemote(name, url string) error
	DeleteRemote(name string) error
	RenameRemote(from, to string) error

	// Pull returns nil when the local branch is already up to date.
	Pull(ctx context.Context, remote, refspec string) error
	// Push failures are reported as *PushFailure.
	Push(ctx context.Context, remote, refspec string) error

	// ChangeSet lists modified tracked paths and untracked paths, sorted.
	ChangeSet() ([]string, error)
	Stage(paths []string) error
	Commit(message string) (string, error)
}

// Opener opens the working copy at path, initialising one if absent.
type Opener func(path string) (Repository, error)

// PushFailure describes a rejected push. Structural failures mean the remote
// or ref does not exist. Other failures carry the remote's diagnostic, which
// may be empty.
type PushFailure struct {
	Structural bool
	Message    string
	Err        error
}

func (e *PushFailure) Error() string {
	switch {
	case e.Structural && e.Err != nil:
		return fmt.Sprintf("push: %v", e.Err)
	case e.Message != "":
		return "push: " + e.Message
	}
	return "push: no diagnostic"
}

func (e *PushFailure) Unwrap() error {
	return e.Err
}

package gitremote

import "errors"

// Sentinel errors for repo-hosting backends.
var (
	ErrUnknownBackend  = errors.New("unknown git remote backend")
	ErrRepoExists      = errors.New("remote repository already exists")
	ErrRequestNotFound = errors.New("repository request not found")
)

package gitrepo

import "errors"

// Sentinel errors for repository synchronisation.
var (
	ErrReconcile    = errors.New("origin reconciliation failed")
	ErrPushRejected = errors.New("push rejected")
)

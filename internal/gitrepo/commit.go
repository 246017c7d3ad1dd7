package gitrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Published reports what Publish did.
type Published struct {
	Changes []string
	Commit  string
	// Swallowed is set when the push failed with an empty diagnostic.
	Swallowed bool
}

// Committer stages, commits and pushes working copies.
type Committer struct {
	log logrus.FieldLogger
}

// NewCommitter creates a committer.
func NewCommitter(log logrus.FieldLogger) *Committer {
	return &Committer{log: log}
}

// Publish commits every modified and untracked path when there are any, then
// pushes master to origin regardless.
func (c *Committer) Publish(ctx context.Context, repo Repository, message string) (*Published, error) {
	log := c.log.WithField("path", repo.Path())

	changes, err := repo.ChangeSet()
	if err != nil {
		return nil, err
	}
	out := &Published{Changes: changes}
	if len(changes) > 0 {
		if err := repo.Stage(changes); err != nil {
			return out, err
		}
		hash, err := repo.Commit(message)
		if err != nil {
			return out, err
		}
		out.Commit = hash
		log.WithFields(logrus.Fields{"commit": hash, "paths": len(changes)}).Info("committed changes")
	} else {
		log.Debug("nothing to commit")
	}

	err = repo.Push(ctx, Origin, MasterRefSpec)
	if err == nil {
		log.Info("pushed to origin")
		return out, nil
	}
	var failure *PushFailure
	if !errors.As(err, &failure) {
		return out, fmt.Errorf("%w: %s: %v", ErrPushRejected, repo.Path(), err)
	}
	if failure.Structural || failure.Message != "" {
		return out, fmt.Errorf("%w: %s: %v", ErrPushRejected, repo.Path(), failure)
	}
	log.Debug("push reported no diagnostic, nothing to push")
	out.Swallowed = true
	return out, nil
}

package gitrepo

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Outcome tags the result of a reconciliation.
type Outcome int

const (
	// OK means origin existed or was created and the pull succeeded.
	OK Outcome = iota
	// AlreadyCorrect means the pull failed but origin already points at the
	// expected URL, as with a freshly created empty remote.
	AlreadyCorrect
	// NeedsRetry means origin pointed elsewhere and is being replaced.
	NeedsRetry
	// Corrected means origin was replaced and the retried pull succeeded.
	Corrected
	// Fatal means the corrective retry failed.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case AlreadyCorrect:
		return "already_correct"
	case NeedsRetry:
		return "needs_retry"
	case Corrected:
		return "corrected"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// Binding relates a working copy to its expected origin.
type Binding struct {
	LocalPath         string
	ExpectedOriginURL string
	ObservedOriginURL string
	Outcome           Outcome
	Repo              Repository
}

// Reconciler aligns working copies with their expected origin.
type Reconciler struct {
	open Opener
	log  logrus.FieldLogger
}

// NewReconciler creates a reconciler that opens working copies with open.
func NewReconciler(open Opener, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{open: open, log: log}
}

// Reconcile ensures localPath is a working copy whose origin is expectedURL
// and pulls master from it. An origin pointing anywhere else is kept as
// old_origin and replaced, even when pulling from it succeeded. At most one
// corrective pull is attempted.
func (r *Reconciler) Reconcile(ctx context.Context, localPath, expectedURL string) (*Binding, error) {
	log := r.log.WithFields(logrus.Fields{"path": localPath, "origin": expectedURL})

	repo, err := r.open(localPath)
	if err != nil {
		return nil, err
	}
	b := &Binding{LocalPath: localPath, ExpectedOriginURL: expectedURL, Repo: repo}

	observed, err := repo.RemoteURL(Origin)
	if err != nil {
		return nil, err
	}
	if observed == "" {
		log.Debug("adding origin")
		if err := repo.CreateRemote(Origin, expectedURL); err != nil {
			return nil, err
		}
	}

	pullErr := repo.Pull(ctx, Origin, MasterRefSpec)
	if pullErr == nil && (observed == "" || observed == expectedURL) {
		b.ObservedOriginURL = expectedURL
		b.Outcome = OK
		return b, nil
	}

	observed, err = repo.RemoteURL(Origin)
	if err != nil {
		return nil, err
	}
	b.ObservedOriginURL = observed
	if observed == expectedURL {
		log.WithError(pullErr).Debug("pull failed, origin already correct")
		b.Outcome = AlreadyCorrect
		return b, nil
	}

	b.Outcome = NeedsRetry
	log.WithField("observed", observed).Info("origin mismatch, replacing")
	if err := r.replaceOrigin(repo, expectedURL); err != nil {
		b.Outcome = Fatal
		return b, fmt.Errorf("%w: %s: %v", ErrReconcile, localPath, err)
	}
	b.ObservedOriginURL = expectedURL

	if err := repo.Pull(ctx, Origin, MasterRefSpec); err != nil {
		b.Outcome = Fatal
		return b, fmt.Errorf("%w: %s: pull from %s: %v", ErrReconcile, localPath, expectedURL, err)
	}
	b.Outcome = Corrected
	return b, nil
}

func (r *Reconciler) replaceOrigin(repo Repository, expectedURL string) error {
	stale, err := repo.RemoteURL(BackupOrigin)
	if err != nil {
		return err
	}
	if stale != "" {
		if err := repo.DeleteRemote(BackupOrigin); err != nil {
			return err
		}
	}
	if err := repo.RenameRemote(Origin, BackupOrigin); err != nil {
		return err
	}
	return repo.CreateRemote(Origin, expectedURL)
}

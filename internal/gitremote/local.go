package gitremote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fentz26/skein/internal/models"
	"github.com/sirupsen/logrus"
	git "gopkg.in/src-d/go-git.v4"
)

// Local hosts bare repositories below a directory and keeps requests in the
// store. Teams are recorded in each repository's config.
type Local struct {
	root  string
	store RequestStore
	log   logrus.FieldLogger
}

// NewLocal is the factory for the "local" backend.
func NewLocal(_ context.Context, deps Deps) (Backend, error) {
	if deps.Config.LocalRoot == "" {
		return nil, fmt.Errorf("local backend: git.local_root is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("local backend: a request store is required")
	}
	return &Local{root: deps.Config.LocalRoot, store: deps.Store, log: deps.Log}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) repoPath(name string) string {
	return filepath.Join(l.root, name+".git")
}

func (l *Local) CreateRemoteRepo(_ context.Context, spec RepoSpec) error {
	path := l.repoPath(spec.Name)
	if _, err := git.PlainOpen(path); err == nil {
		return fmt.Errorf("%s: %w", spec.Name, ErrRepoExists)
	}
	if err := os.MkdirAll(path, 0o775); err != nil {
		return err
	}
	repo, err := git.PlainInit(path, true)
	if err != nil {
		return fmt.Errorf("init %s: %w", path, err)
	}
	cfg, err := repo.Config()
	if err != nil {
		return err
	}
	section := cfg.Raw.Section("skein")
	section.SetOption("summary", spec.Summary)
	section.SetOption("url", spec.URL)
	section.SetOption("owner", spec.Owner)
	if err := repo.Storer.SetConfig(cfg); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"repo": spec.Name, "path": path}).Info("created remote repository")
	return nil
}

func (l *Local) CreateTeam(_ context.Context, team, repo string) error {
	r, err := git.PlainOpen(l.repoPath(repo))
	if err != nil {
		return fmt.Errorf("open %s: %w", repo, err)
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	// Team names may hold characters git forbids in keys, so each team is
	// a subsection.
	cfg.Raw.Section("team").Subsection(team).SetOption("permission", "admin")
	if err := r.Storer.SetConfig(cfg); err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"team": team, "repo": repo}).Info("granted team access")
	return nil
}

// Team returns the permission recorded for team on repo.
func (l *Local) Team(repo, team string) (string, error) {
	r, err := git.PlainOpen(l.repoPath(repo))
	if err != nil {
		return "", err
	}
	cfg, err := r.Config()
	if err != nil {
		return "", err
	}
	return cfg.Raw.Section("team").Subsection(team).Option("permission"), nil
}

func (l *Local) RequestRemoteRepo(_ context.Context, spec RepoSpec, reason string) (*models.RepoRequest, error) {
	return l.store.CreateRequest(spec.Name, spec.Summary, spec.URL, spec.Owner, reason)
}

func (l *Local) SearchRepoRequests(_ context.Context, state models.RequestState) ([]models.RepoRequest, error) {
	return l.store.ListRequests(state)
}

func (l *Local) ShowRequest(_ context.Context, id string) (*models.RepoRequest, error) {
	req, err := l.store.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrRequestNotFound)
	}
	return req, nil
}

func (l *Local) CloseRequest(ctx context.Context, id string) error {
	if _, err := l.ShowRequest(ctx, id); err != nil {
		return err
	}
	return l.store.CloseRequest(id)
}

var _ Backend = (*Local)(nil)

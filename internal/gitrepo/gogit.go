package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "gopkg.in/src-d/go-git.v4"
	gitconfig "gopkg.in/src-d/go-git.v4/config"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
)

// Author identifies the committer of imported changes.
type Author struct {
	Name  string
	Email string
}

// GoGit is a Repository backed by go-git.
type GoGit struct {
	path   string
	repo   *git.Repository
	author Author
	now    func() time.Time
}

// NewOpener returns an Opener that commits as author.
func NewOpener(author Author) Opener {
	return func(path string) (Repository, error) {
		return OpenOrInit(path, author)
	}
}

// OpenOrInit opens the working copy at path, running the equivalent of
// git init when none exists.
func OpenOrInit(path string, author Author) (*GoGit, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		repo, err = git.PlainInit(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &GoGit{path: path, repo: repo, author: author, now: time.Now}, nil
}

func (g *GoGit) Path() string { return g.path }

func (g *GoGit) RemoteURL(name string) (string, error) {
	remote, err := g.repo.Remote(name)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", nil
	}
	return urls[0], nil
}

func (g *GoGit) CreateRemote(name, url string) error {
	_, err := g.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		return fmt.Errorf("create remote %s: %w", name, err)
	}
	return nil
}

func (g *GoGit) DeleteRemote(name string) error {
	if err := g.repo.DeleteRemote(name); err != nil {
		return fmt.Errorf("delete remote %s: %w", name, err)
	}
	return nil
}

// RenameRemote moves the remote's configuration and its remote-tracking refs
// to the new name.
func (g *GoGit) RenameRemote(from, to string) error {
	cfg, err := g.repo.Config()
	if err != nil {
		return err
	}
	rc, ok := cfg.Remotes[from]
	if !ok {
		return fmt.Errorf("rename remote %s: %w", from, git.ErrRemoteNotFound)
	}
	if _, exists := cfg.Remotes[to]; exists {
		return fmt.Errorf("rename remote %s: %w", from, git.ErrRemoteExists)
	}

	oldPrefix := "refs/remotes/" + from + "/"
	newPrefix := "refs/remotes/" + to + "/"
	renamed := &gitconfig.RemoteConfig{Name: to, URLs: rc.URLs}
	for _, spec := range rc.Fetch {
		renamed.Fetch = append(renamed.Fetch, gitconfig.RefSpec(strings.Replace(string(spec), oldPrefix, newPrefix, 1)))
	}
	delete(cfg.Remotes, from)
	cfg.Remotes[to] = renamed
	if err := g.repo.Storer.SetConfig(cfg); err != nil {
		return fmt.Errorf("rename remote %s: %w", from, err)
	}

	refs, err := g.repo.References()
	if err != nil {
		return err
	}
	var tracking []*plumbing.Reference
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.HashReference && strings.HasPrefix(ref.Name().String(), oldPrefix) {
			tracking = append(tracking, ref)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, ref := range tracking {
		name := plumbing.ReferenceName(newPrefix + strings.TrimPrefix(ref.Name().String(), oldPrefix))
		if err := g.repo.Storer.SetReference(plumbing.NewHashReference(name, ref.Hash())); err != nil {
			return err
		}
		if err := g.repo.Storer.RemoveReference(ref.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (g *GoGit) Pull(ctx context.Context, remote, refspec string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return err
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    remote,
		ReferenceName: plumbing.ReferenceName(gitconfig.RefSpec(refspec).Src()),
		SingleBranch:  true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// Push maps go-git's outcomes onto PushFailure. An up-to-date remote is an
// assertion failure with no diagnostic.
func (g *GoGit) Push(ctx context.Context, remote, refspec string) error {
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(refspec)},
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return &PushFailure{}
	case errors.Is(err, git.ErrRemoteNotFound), errors.Is(err, plumbing.ErrReferenceNotFound):
		return &PushFailure{Structural: true, Err: err}
	}
	return &PushFailure{Message: err.Error(), Err: err}
}

func (g *GoGit) ChangeSet() ([]string, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status %s: %w", g.path, err)
	}
	var paths []string
	for path, fs := range status {
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (g *GoGit) Stage(paths []string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := os.Lstat(filepath.Join(g.path, p)); os.IsNotExist(err) {
			if _, err := wt.Remove(p); err != nil {
				return fmt.Errorf("stage removal of %s: %w", p, err)
			}
			continue
		}
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	return nil
}

func (g *GoGit) Commit(message string) (string, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: g.author.Name, Email: g.author.Email, When: g.now()},
	})
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", g.path, err)
	}
	return hash.String(), nil
}

var _ Repository = (*GoGit)(nil)

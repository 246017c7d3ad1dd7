package gitrepo

import (
	"context"
	"errors"
	"fmt"
)

type fakeRepo struct {
	path     string
	remotes  map[string]string
	pullErrs map[string]error
	pushErr  error
	changes  []string

	pulls   []string
	staged  []string
	commits []string
	pushes  int
	renames int
	deletes int
}

func newFakeRepo(path string) *fakeRepo {
	return &fakeRepo{path: path, remotes: map[string]string{}, pullErrs: map[string]error{}}
}

func (f *fakeRepo) opener() Opener {
	return func(string) (Repository, error) { return f, nil }
}

func (f *fakeRepo) Path() string { return f.path }

func (f *fakeRepo) RemoteURL(name string) (string, error) { return f.remotes[name], nil }

func (f *fakeRepo) CreateRemote(name, url string) error {
	if _, ok := f.remotes[name]; ok {
		return fmt.Errorf("remote %s exists", name)
	}
	f.remotes[name] = url
	return nil
}

func (f *fakeRepo) DeleteRemote(name string) error {
	if _, ok := f.remotes[name]; !ok {
		return errors.New("remote not found")
	}
	delete(f.remotes, name)
	f.deletes++
	return nil
}

func (f *fakeRepo) RenameRemote(from, to string) error {
	url, ok := f.remotes[from]
	if !ok {
		return errors.New("remote not found")
	}
	if _, exists := f.remotes[to]; exists {
		return errors.New("remote already exists")
	}
	delete(f.remotes, from)
	f.remotes[to] = url
	f.renames++
	return nil
}

func (f *fakeRepo) Pull(_ context.Context, remote, _ string) error {
	url := f.remotes[remote]
	f.pulls = append(f.pulls, url)
	return f.pullErrs[url]
}

func (f *fakeRepo) Push(context.Context, string, string) error {
	f.pushes++
	return f.pushErr
}

func (f *fakeRepo) ChangeSet() ([]string, error) { return f.changes, nil }

func (f *fakeRepo) Stage(paths []string) error {
	f.staged = append(f.staged, paths...)
	return nil
}

func (f *fakeRepo) Commit(message string) (string, error) {
	f.commits = append(f.commits, message)
	f.changes = nil
	return fmt.Sprintf("%040d", len(f.commits)), nil
}

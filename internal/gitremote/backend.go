// Package gitremote creates package repositories and tracks repository
// requests on a repo-hosting service. Backends are compiled in and selected
// by name from the configuration.
package gitremote

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/models"
	"github.com/sirupsen/logrus"
)

// RepoSpec describes a package repository.
type RepoSpec struct {
	Name    string
	Summary string
	URL     string
	Owner   string
}

// Backend is the capability set of a repo-hosting service.
type Backend interface {
	Name() string
	// CreateRemoteRepo returns ErrRepoExists when the repository is already there.
	CreateRemoteRepo(ctx context.Context, spec RepoSpec) error
	// CreateTeam grants team admin access to repo, creating the team if needed.
	CreateTeam(ctx context.Context, team, repo string) error
	RequestRemoteRepo(ctx context.Context, spec RepoSpec, reason string) (*models.RepoRequest, error)
	SearchRepoRequests(ctx context.Context, state models.RequestState) ([]models.RepoRequest, error)
	// ShowRequest returns ErrRequestNotFound for unknown ids.
	ShowRequest(ctx context.Context, id string) (*models.RepoRequest, error)
	CloseRequest(ctx context.Context, id string) error
}

// RequestStore persists repository requests for backends without their own
// request tracker.
type RequestStore interface {
	CreateRequest(name, summary, url, owner, reason string) (*models.RepoRequest, error)
	GetRequest(id string) (*models.RepoRequest, error)
	ListRequests(state models.RequestState) ([]models.RepoRequest, error)
	CloseRequest(id string) error
}

// Deps carries what a backend may need to start.
type Deps struct {
	Config     config.GitConfig
	Store      RequestStore
	Log        logrus.FieldLogger
	HTTPClient *http.Client
	// BaseURL overrides the hosting API endpoint.
	BaseURL string
}

// Factory builds a backend.
type Factory func(ctx context.Context, deps Deps) (Backend, error)

// Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range map[string]Factory{
		"local":  NewLocal,
		"github": NewGitHub,
	} {
		if err := r.Register(name, f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces a backend factory.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	r.factories[name] = f
	return nil
}

// Names lists the registered backends, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the backend registered under name.
func (r *Registry) Open(ctx context.Context, name string, deps Deps) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownBackend, name, r.Names())
	}
	return f(ctx, deps)
}

package gitremote

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fentz26/skein/internal/config"
	"github.com/fentz26/skein/internal/logging"
	"github.com/fentz26/skein/internal/models"
	"github.com/fentz26/skein/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	git "gopkg.in/src-d/go-git.v4"
)

func TestRegistryUnknownBackend(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"github", "local"}, r.Names())

	_, err := r.Open(context.Background(), "pagure", Deps{Log: logging.Discard()})
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "pagure")
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", NewLocal))
	require.NoError(t, r.Register("local", NewLocal))
	assert.Equal(t, []string{"local"}, r.Names())
}

func newLocal(t *testing.T) (*Local, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "skein.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b, err := DefaultRegistry().Open(context.Background(), "local", Deps{
		Config: config.GitConfig{LocalRoot: t.TempDir()},
		Store:  s,
		Log:    logging.Discard(),
	})
	require.NoError(t, err)
	return b.(*Local), s
}

func TestLocalCreateRemoteRepo(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()
	spec := RepoSpec{Name: "bash", Summary: "The GNU Bourne Again shell", Owner: "builder"}

	require.NoError(t, l.CreateRemoteRepo(ctx, spec))
	assert.DirExists(t, filepath.Join(l.root, "bash.git"))
	assert.ErrorIs(t, l.CreateRemoteRepo(ctx, spec), ErrRepoExists)

	require.NoError(t, l.CreateTeam(ctx, "pkg_bash", "bash"))
	perm, err := l.Team("bash", "pkg_bash")
	require.NoError(t, err)
	assert.Equal(t, "admin", perm)

	assert.Error(t, l.CreateTeam(ctx, "pkg_zsh", "zsh"))
}

func TestLocalTeamKeepsConfigReadable(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.CreateRemoteRepo(ctx, RepoSpec{Name: "bash", Summary: "shell"}))
	require.NoError(t, l.CreateTeam(ctx, "pkg_bash", "bash"))
	require.NoError(t, l.CreateTeam(ctx, "pkg.bash-devel", "bash"))

	repo, err := git.PlainOpen(filepath.Join(l.root, "bash.git"))
	require.NoError(t, err)
	cfg, err := repo.Config()
	require.NoError(t, err)
	assert.Equal(t, "shell", cfg.Raw.Section("skein").Option("summary"))

	perm, err := l.Team("bash", "pkg.bash-devel")
	require.NoError(t, err)
	assert.Equal(t, "admin", perm)
	perm, err = l.Team("bash", "pkg_other")
	require.NoError(t, err)
	assert.Empty(t, perm)
}

func TestLocalRequests(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()

	req, err := l.RequestRemoteRepo(ctx, RepoSpec{Name: "bash", Summary: "shell", Owner: "builder"}, "needed for the base set")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStateOpen, req.State)

	open, err := l.SearchRepoRequests(ctx, models.RequestStateOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)

	shown, err := l.ShowRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "needed for the base set", shown.Reason)

	require.NoError(t, l.CloseRequest(ctx, req.ID))
	open, err = l.SearchRepoRequests(ctx, models.RequestStateOpen)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = l.ShowRequest(ctx, "missing")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.ErrorIs(t, l.CloseRequest(ctx, "missing"), ErrRequestNotFound)
}

func TestLocalRequiresRoot(t *testing.T) {
	_, err := NewLocal(context.Background(), Deps{Log: logging.Discard()})
	assert.Error(t, err)
}

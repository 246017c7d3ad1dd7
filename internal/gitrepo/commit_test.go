package gitrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/fentz26/skein/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEmptyChangeSetStillPushes(t *testing.T) {
	repo := newFakeRepo("/srv/pkgs/bash")
	c := NewCommitter(logging.Discard())

	out, err := c.Publish(context.Background(), repo, "Import bash-4.1-2")
	require.NoError(t, err)
	assert.Empty(t, out.Commit)
	assert.Empty(t, repo.commits)
	assert.Equal(t, 1, repo.pushes)
}

func TestPublishCommitsOnce(t *testing.T) {
	repo := newFakeRepo("/srv/pkgs/bash")
	repo.changes = []string{".gitignore", "Makefile", "bash.spec", "sources"}
	c := NewCommitter(logging.Discard())

	out, err := c.Publish(context.Background(), repo, "Import bash-4.1-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Import bash-4.1-2"}, repo.commits)
	assert.Equal(t, []string{".gitignore", "Makefile", "bash.spec", "sources"}, repo.staged)
	assert.NotEmpty(t, out.Commit)
	assert.Equal(t, 1, repo.pushes)
}

func TestPublishPushClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		fatal     bool
		swallowed bool
	}{
		{"empty assertion", &PushFailure{}, false, true},
		{"assertion with message", &PushFailure{Message: "! [rejected] master -> master (non-fast-forward)"}, true, false},
		{"structural", &PushFailure{Structural: true, Err: errors.New("remote not found")}, true, false},
		{"transport", errors.New("connection reset by peer"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo("/srv/pkgs/bash")
			repo.pushErr = tt.err
			out, err := NewCommitter(logging.Discard()).Publish(context.Background(), repo, "Import")
			if tt.fatal {
				require.ErrorIs(t, err, ErrPushRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.swallowed, out.Swallowed)
		})
	}
}

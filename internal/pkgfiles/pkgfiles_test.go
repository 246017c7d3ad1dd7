package pkgfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fentz26/skein/internal/logging"
	"github.com/fentz26/skein/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pkg = &models.Package{
	Name:    "hello",
	Version: "2.8",
	Release: "1",
	Sources: []string{"hello-2.8.tar.gz", "hello.desktop"},
	Patches: []string{"hello-fix.patch"},
}

func TestWriteMakefileSearchesPath(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(second, "Makefile.tpl"), []byte("NAME := {{.Name}}\ninclude ../common/Makefile\n"), 0o644))
	w := New(first+":"+second, "Makefile.tpl", logging.Discard())

	repo := t.TempDir()
	require.NoError(t, w.WriteMakefile(pkg, repo))
	data, err := os.ReadFile(filepath.Join(repo, "Makefile"))
	require.NoError(t, err)
	assert.Equal(t, "NAME := hello\ninclude ../common/Makefile\n", string(data))
}

func TestWriteMakefileMissingTemplate(t *testing.T) {
	w := New(t.TempDir(), "Makefile.tpl", logging.Discard())
	assert.ErrorIs(t, w.WriteMakefile(pkg, t.TempDir()), ErrTemplateNotFound)
}

func TestWriteGitignore(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, New("", "", logging.Discard()).WriteGitignore(pkg, repo))
	data, err := os.ReadFile(filepath.Join(repo, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "hello-2.8.tar.gz\nhello.desktop\n", string(data))
}

func TestCopySpecAndPatches(t *testing.T) {
	src, repo := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello.spec"), []byte("Name: hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "hello-fix.patch"), []byte("--- a\n+++ b\n"), 0o644))
	w := New("", "", logging.Discard())

	require.NoError(t, w.CopySpec(filepath.Join(src, "hello.spec"), repo))
	require.NoError(t, w.CopyPatches(pkg, src, repo))
	assert.FileExists(t, filepath.Join(repo, "hello.spec"))
	assert.FileExists(t, filepath.Join(repo, "hello-fix.patch"))
}

func TestCommitMessage(t *testing.T) {
	msg, err := CommitMessage("Import {{.NVR}}", pkg)
	require.NoError(t, err)
	assert.Equal(t, "Import hello-2.8-1", msg)

	_, err = CommitMessage("{{.Missing", pkg)
	assert.Error(t, err)
}

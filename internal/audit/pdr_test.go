package audit

import (
	"path/filepath"
	"testing"

	"github.com/fentz26/skein/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHashesInputs(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer s.Close()

	w := NewPDRWriter(s)
	a, err := w.Record("repo.push", map[string]string{"repo": "bash"}, "success", "bash", "")
	require.NoError(t, err)
	b, err := w.Record("repo.push", map[string]string{"repo": "bash"}, "success", "bash", "")
	require.NoError(t, err)

	assert.Equal(t, a.InputsHash, b.InputsHash)
	assert.Len(t, a.InputsHash, 64)

	entries, err := s.ListPDR("bash")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNilWriterDiscards(t *testing.T) {
	var w *PDRWriter
	entry, err := w.Record("task.transition", nil, "success", "1", "")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}

func TestHashInputsUnmarshalable(t *testing.T) {
	assert.Equal(t, "hash_error", hashInputs(make(chan int)))
}

package storage

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRecordAndGet(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("mirror", 0755))

	l, err := OpenLedger(fs, "mirror")
	require.NoError(t, err)
	require.NotEmpty(t, l.RunID())

	require.NoError(t, l.Record("Course/notes.pdf", OutcomeCompleted, 1024, ""))
	require.NoError(t, l.Record("Course/gone.pdf", OutcomeFailed, 0, "resource not found"))

	a, ok := l.Get("Course/notes.pdf")
	require.True(t, ok)
	assert.Equal(t, OutcomeCompleted, a.Outcome)
	assert.Equal(t, int64(1024), a.Bytes)
	assert.Equal(t, l.RunID(), a.RunID)

	a, ok = l.Get("Course/gone.pdf")
	require.True(t, ok)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Equal(t, "resource not found", a.Reason)
}

func TestLedgerSurvivesReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("mirror", 0755))

	first, err := OpenLedger(fs, "mirror")
	require.NoError(t, err)
	require.NoError(t, first.Record("Course/notes.pdf", OutcomeCompleted, 42, ""))

	second, err := OpenLedger(fs, "mirror")
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID(), second.RunID(), "each run gets a fresh id")

	a, ok := second.Get("Course/notes.pdf")
	require.True(t, ok)
	assert.Equal(t, first.RunID(), a.RunID, "earlier attempts keep their run id")
	assert.Equal(t, int64(42), a.Bytes)
}

func TestLedgerIgnoresCorruptSidecar(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("mirror", 0755))
	require.NoError(t, afero.WriteFile(fs, "mirror/"+LedgerFileName, []byte("{not json"), 0644))

	l, err := OpenLedger(fs, "mirror")
	require.NoError(t, err, "corrupt sidecar must not abort the run")
	assert.Equal(t, 0, l.Len())
}

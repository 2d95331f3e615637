package storage

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasfetch/pkg/logger"
)

func newTestManager(t *testing.T) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m, err := NewManagerWithFs(fs, "mirror", logger.NewNopLogger())
	require.NoError(t, err)
	return m, fs
}

func TestIsComplete(t *testing.T) {
	m, fs := newTestManager(t)

	assert.False(t, m.IsComplete("mirror/absent.pdf"), "absent file is not complete")

	require.NoError(t, afero.WriteFile(fs, "mirror/empty.pdf", nil, 0644))
	assert.False(t, m.IsComplete("mirror/empty.pdf"), "zero-length placeholder is not complete")

	require.NoError(t, afero.WriteFile(fs, "mirror/done.pdf", []byte("data"), 0644))
	assert.True(t, m.IsComplete("mirror/done.pdf"))

	require.NoError(t, fs.MkdirAll("mirror/dir.pdf", 0755))
	assert.False(t, m.IsComplete("mirror/dir.pdf"), "directory is never a complete file")
}

func TestSaveFileWritesAndRenames(t *testing.T) {
	m, fs := newTestManager(t)

	var lastProgress int64
	path := filepath.Join("mirror", "Course", "notes.pdf")
	written, err := m.SaveFile(path, strings.NewReader("lecture notes"), func(n int64) {
		lastProgress = n
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len("lecture notes")), written)
	assert.Equal(t, written, lastProgress)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "lecture notes", string(data))

	exists, _ := afero.Exists(fs, path+partSuffix)
	assert.False(t, exists, "temp file must not survive a successful save")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream interrupted")
}

func TestSaveFileCleansUpOnReadError(t *testing.T) {
	m, fs := newTestManager(t)

	path := "mirror/broken.pdf"
	_, err := m.SaveFile(path, failingReader{}, nil)
	require.Error(t, err)

	for _, p := range []string{path, path + partSuffix} {
		exists, _ := afero.Exists(fs, p)
		assert.False(t, exists, "%s must not exist after a failed save", p)
	}
}

func TestWritePlaceholder(t *testing.T) {
	m, fs := newTestManager(t)

	path := "mirror/Course/failed.pdf"
	require.NoError(t, m.WritePlaceholder(path))

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
	assert.False(t, m.IsComplete(path), "placeholder is retried on the next run")
}

func TestWritePlaceholderTruncatesPartialContent(t *testing.T) {
	m, fs := newTestManager(t)

	path := "mirror/partial.pdf"
	require.NoError(t, afero.WriteFile(fs, path, []byte("half of the"), 0644))
	require.NoError(t, m.WritePlaceholder(path))

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512B", FormatSize(512))
	assert.Equal(t, "1.00 KB", FormatSize(1024))
	assert.Equal(t, "1.50 MB", FormatSize(1536*1024))
}

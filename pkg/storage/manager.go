// Package storage owns the local mirror: the download directory tree is the
// system's persisted state. A non-zero-size file is a completed download, a
// zero-length file is a recorded failed attempt, and an absent file was
// never tried. Content is written to a temporary path and renamed on
// completion so an interrupted run never leaves a truncated file the skip
// check would trust.
package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"canvasfetch/pkg/logger"
)

// partSuffix marks in-flight writes. A leftover .part file is ignored by
// the skip check and overwritten by the next attempt.
const partSuffix = ".part"

// Manager handles mirror filesystem operations.
type Manager struct {
	fs      afero.Fs
	baseDir string
	logger  logger.Logger
}

// NewManager creates a storage manager rooted at baseDir on the real
// filesystem, creating the directory if needed.
func NewManager(baseDir string, log logger.Logger) (*Manager, error) {
	return NewManagerWithFs(afero.NewOsFs(), baseDir, log)
}

// NewManagerWithFs creates a storage manager over an arbitrary filesystem.
// Tests use an in-memory fs.
func NewManagerWithFs(fs afero.Fs, baseDir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := fs.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &Manager{fs: fs, baseDir: baseDir, logger: log}, nil
}

// BaseDir returns the mirror root.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Fs exposes the underlying filesystem for collaborators such as the ledger.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// EnsureDir creates a directory and any parents. Creating an existing
// directory is a no-op, never an error.
func (m *Manager) EnsureDir(path string) error {
	if err := m.fs.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// IsComplete reports whether path holds a completed download: the file
// exists with non-zero size. Zero-length placeholders and absent files both
// report false, which is exactly what makes re-runs retry failures only.
func (m *Manager) IsComplete(path string) bool {
	info, err := m.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// SaveFile streams r into path via a temporary file, invoking progress with
// the cumulative byte count as chunks arrive, and renames into place once
// the stream ends cleanly. On any error the partial file is removed and
// nothing exists at path.
func (m *Manager) SaveFile(path string, r io.Reader, progress func(written int64)) (int64, error) {
	if err := m.EnsureDir(filepath.Dir(path)); err != nil {
		return 0, err
	}

	tempPath := path + partSuffix
	out, err := m.fs.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, copyErr := copyWithProgress(out, r, progress)
	closeErr := out.Close()

	if copyErr != nil {
		m.fs.Remove(tempPath)
		return 0, fmt.Errorf("failed to write file data: %w", copyErr)
	}
	if closeErr != nil {
		m.fs.Remove(tempPath)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := m.fs.Rename(tempPath, path); err != nil {
		m.fs.Remove(tempPath)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.logger.DebugWithFields("file saved", map[string]interface{}{
		"path":  path,
		"bytes": written,
	})

	return written, nil
}

// WritePlaceholder writes a zero-length file at path, marking a failed
// attempt so a later run retries it. Truncates whatever partial state the
// path held.
func (m *Manager) WritePlaceholder(path string) error {
	if err := m.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := m.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create placeholder: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close placeholder: %w", err)
	}

	m.logger.DebugWithFields("placeholder written", map[string]interface{}{
		"path": path,
	})

	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, progress func(int64)) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(written)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// FormatSize renders a byte count in a human-readable form for log output.
func FormatSize(sizeBytes int64) string {
	const unit = 1024
	if sizeBytes < unit {
		return fmt.Sprintf("%dB", sizeBytes)
	}
	div, exp := int64(unit), 0
	for n := sizeBytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(sizeBytes)/float64(div), "KMGT"[exp])
}

package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// LedgerFileName is the JSON sidecar kept at the mirror root. It records
// attempt outcomes for diagnostics. Resume decisions come from the files
// themselves, never from the ledger, so losing it costs nothing.
const LedgerFileName = ".canvasfetch-ledger.json"

// AttemptOutcome classifies how an attempt on one item ended.
type AttemptOutcome string

const (
	OutcomeCompleted AttemptOutcome = "completed"
	OutcomeFailed    AttemptOutcome = "failed"
	OutcomeSkipped   AttemptOutcome = "skipped"
)

// Attempt is the recorded result of one attempt on one item.
type Attempt struct {
	Path      string         `json:"path"`
	Outcome   AttemptOutcome `json:"outcome"`
	Bytes     int64          `json:"bytes,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
}

type ledgerFile struct {
	Version   int                `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
	Attempts  map[string]Attempt `json:"attempts"`
}

// Ledger maintains the attempt sidecar. Safe for concurrent use; the
// transfer pool records outcomes from multiple workers.
type Ledger struct {
	mu    sync.Mutex
	fs    afero.Fs
	path  string
	runID string
	data  ledgerFile
}

// OpenLedger loads the sidecar from the mirror root, or starts a fresh one
// if it is absent or unreadable. A corrupt sidecar is discarded rather than
// aborting the run.
func OpenLedger(fs afero.Fs, baseDir string) (*Ledger, error) {
	l := &Ledger{
		fs:    fs,
		path:  filepath.Join(baseDir, LedgerFileName),
		runID: uuid.NewString(),
		data: ledgerFile{
			Version:  1,
			Attempts: make(map[string]Attempt),
		},
	}

	raw, err := afero.ReadFile(fs, l.path)
	if err != nil {
		return l, nil
	}

	var existing ledgerFile
	if err := json.Unmarshal(raw, &existing); err != nil {
		return l, nil
	}
	if existing.Attempts != nil {
		l.data.Attempts = existing.Attempts
	}

	return l, nil
}

// RunID identifies this process run in recorded attempts.
func (l *Ledger) RunID() string {
	return l.runID
}

// Record stores the outcome of an attempt on the item at relPath and
// persists the sidecar.
func (l *Ledger) Record(relPath string, outcome AttemptOutcome, bytes int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.data.Attempts[relPath] = Attempt{
		Path:      relPath,
		Outcome:   outcome,
		Bytes:     bytes,
		Reason:    reason,
		RunID:     l.runID,
		Timestamp: time.Now().UTC(),
	}

	return l.save()
}

// Get returns the last recorded attempt for relPath.
func (l *Ledger) Get(relPath string) (Attempt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.data.Attempts[relPath]
	return a, ok
}

// Len returns the number of items with a recorded attempt.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.data.Attempts)
}

// save writes the sidecar through a temp file so a crash mid-write leaves
// the previous version intact. Caller holds the mutex.
func (l *Ledger) save() error {
	l.data.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := afero.WriteFile(l.fs, tempPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := l.fs.Rename(tempPath, l.path); err != nil {
		l.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	return nil
}

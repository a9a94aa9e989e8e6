// Package ledger tracks per-path read state so file mutations can be gated
// on read-before-write and staleness checks. The ledger is in-memory and
// scoped to one session; a new session starts empty and must re-validate
// reads from scratch.
package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReasonNotRead and ReasonModified are the two failure reasons Check can
// return for an existing path.
const (
	ReasonNotRead  = "file has not been read yet"
	ReasonModified = "file has been modified since it was last read"
)

type record struct {
	modTime time.Time
	partial bool
}

// Ledger records the last-known on-disk modification time per absolute path.
// It is safe for concurrent use; the mediator and any host-side readers may
// share one instance.
type Ledger struct {
	mu      sync.Mutex
	records map[string]record
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records: make(map[string]record),
		logger:  logger,
	}
}

// RecordRead stores the current on-disk modification time for path. The
// partial flag marks reads that only covered a window of the file.
func (l *Ledger) RecordRead(path string, partial bool) {
	abs := resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		l.logger.Debug("ledger read record skipped, stat failed",
			zap.String("path", abs), zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[abs] = record{modTime: info.ModTime(), partial: partial}
}

// RecordWrite refreshes the stored modification time after a successful
// mutation and clears the partial flag.
func (l *Ledger) RecordWrite(path string) {
	abs := resolve(path)
	info, err := os.Stat(abs)
	if err != nil {
		l.logger.Debug("ledger write record skipped, stat failed",
			zap.String("path", abs), zap.Error(err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[abs] = record{modTime: info.ModTime()}
}

// Check reports whether path may be mutated. A path that does not exist is
// always ok (it will be created fresh). An existing path fails if it was
// never read, or if its on-disk modification time is newer than the one
// recorded at read time. Failure is a returned value, never an error; the
// caller recovers by re-reading the file.
func (l *Ledger) Check(path string) (bool, string) {
	abs := resolve(path)
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return true, ""
	}
	if err != nil {
		// Stat failures other than non-existence are surfaced by the
		// actual filesystem operation; the ledger has no opinion.
		return true, ""
	}

	l.mu.Lock()
	rec, found := l.records[abs]
	l.mu.Unlock()

	if !found {
		return false, ReasonNotRead
	}
	if info.ModTime().After(rec.modTime) {
		return false, ReasonModified
	}
	return true, ""
}

// Partial reports whether the last recorded read of path was a windowed
// read. Returns false for paths with no record.
func (l *Ledger) Partial(path string) bool {
	abs := resolve(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[abs].partial
}

func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

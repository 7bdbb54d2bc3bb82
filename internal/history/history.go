// Package history keeps the append-only log of applied file edits that
// backs the reapply capability. Records are scoped to the session that
// produced them and strictly time-ordered per file path.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Record is one logged file mutation: the state the file was in before
// the edit and the content the edit left behind.
type Record struct {
	SessionID string
	Path      string
	Existed   bool   // file existed before the edit
	Previous  string // content before the edit, empty when Existed is false
	Content   string // content the edit wrote
	Removed   bool   // the edit deleted the file
	At        time.Time
}

var ErrNoPriorEdit = errors.New("no prior edit recorded for file")

// Log is the per-session, per-path edit log.
type Log struct {
	mu      sync.RWMutex
	records map[string]map[string][]Record // sessionID -> path -> ordered records
}

func NewLog() *Log {
	return &Log{records: make(map[string]map[string][]Record)}
}

// Append commits one record. A zero At timestamp is filled in.
func (l *Log) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.At.IsZero() {
		rec.At = time.Now()
	}

	paths, ok := l.records[rec.SessionID]
	if !ok {
		paths = make(map[string][]Record)
		l.records[rec.SessionID] = paths
	}
	paths[rec.Path] = append(paths[rec.Path], rec)
}

// Latest returns the most recent record for a path within a session.
func (l *Log) Latest(sessionID, path string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	recs := l.records[sessionID][path]
	if len(recs) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNoPriorEdit, path)
	}
	return recs[len(recs)-1], nil
}

// All returns a copy of every record for a path within a session, in
// append order.
func (l *Log) All(sessionID, path string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	recs := l.records[sessionID][path]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}

// Count returns how many edits a session has recorded across all paths.
func (l *Log) Count(sessionID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, recs := range l.records[sessionID] {
		n += len(recs)
	}
	return n
}

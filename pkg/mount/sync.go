package mount

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// SyncTable wraps a *Table with a mutex so it can be safely shared
// across goroutines, the one concurrency-safe surface this module
// offers over the otherwise single-threaded Table/Entry/Cache types.
// It uses go-deadlock rather than sync.Mutex so a forgotten Unlock (or
// an accidental recursive lock from a caller reaching back into the
// same table mid-callback) surfaces as a diagnosed deadlock instead of
// a silent hang.
type SyncTable struct {
	mu    deadlock.RWMutex
	table *Table
}

// NewSyncTable wraps an existing table. The wrapper takes ownership of
// coordinating access; callers should stop touching table directly.
func NewSyncTable(t *Table) *SyncTable {
	return &SyncTable{table: t}
}

// Read runs fn with a read lock held, for concurrent lookups.
func (s *SyncTable) Read(fn func(t *Table)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.table)
}

// Write runs fn with an exclusive lock held, for Add/Remove/parse
// calls.
func (s *SyncTable) Write(fn func(t *Table)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.table)
}

// Add is the common case of Write wrapping Table.Add.
func (s *SyncTable) Add(entry *Entry) error {
	var err error
	s.Write(func(t *Table) { err = t.Add(entry) })
	return err
}

// Remove is the common case of Write wrapping Table.Remove.
func (s *SyncTable) Remove(entry *Entry) {
	s.Write(func(t *Table) { t.Remove(entry) })
}

// FindTarget is the common case of Read wrapping Table.FindTarget.
func (s *SyncTable) FindTarget(target string, dir Direction) *Entry {
	var found *Entry
	s.Read(func(t *Table) { found = t.FindTarget(target, dir) })
	return found
}

// FindSource is the common case of Read wrapping Table.FindSource.
func (s *SyncTable) FindSource(source string, dir Direction) *Entry {
	var found *Entry
	s.Read(func(t *Table) { found = t.FindSource(source, dir) })
	return found
}

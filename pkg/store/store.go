// Package store models the named, persisted ConfigTree datastores
// (spec.md §3): candidate, running, startup, failsafe, tmp, and the
// rollback-commit-N family used by confirmed-commit.
package store

import (
	"sync"
	"time"

	"github.com/netconfd/confd/pkg/tree"
)

// Well-known datastore names (spec.md §3, §6).
const (
	Candidate = "candidate"
	Running   = "running"
	Startup   = "startup"
	Failsafe  = "failsafe"
	Tmp       = "tmp"
)

// ModstateStatus classifies a module's stored revision against the current
// one: NONE (match), OTHER (revision differs), NOMATCH (module unknown).
type ModstateStatus int

const (
	ModstateNone ModstateStatus = iota
	ModstateOther
	ModstateNomatch
)

// ModstateEntry is one (author-revision, current-revision) pair for a
// module referenced by a stored tree (spec.md §3).
type ModstateEntry struct {
	Module          string
	AuthorRevision  string
	CurrentRevision string
	Status          ModstateStatus
}

// Datastore is a named, persisted ConfigTree with a lock holder and dirty
// bit (spec.md §3).
type Datastore struct {
	Name        string
	Tree        *tree.Node
	LockHolder  int // 0 = unlocked
	Dirty       bool
	ModuleState []ModstateEntry
}

// DatastoreStore is the out-of-scope persistence capability (spec.md §1):
// load, save, copy, and existence of named datastores.
type DatastoreStore interface {
	Load(name string) (*tree.Node, error)
	Save(name string, t *tree.Node) error
	Copy(src, dst string) error
	Delete(name string) error
	Exists(name string) bool
}

// Clock is the time capability used by the confirmed-commit manager, named
// so tests can substitute a fake (spec.md §2).
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer abstracts the subset of time.Timer the confirmed-commit manager
// needs, so a fake Clock can return a fake Timer.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// SystemClock is the real-time Clock backed by the time package.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return &realTimer{t: time.AfterFunc(d, fn)}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) Stop() bool            { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// Set is the in-process registry of every live Datastore, guarded by a
// mutex because the confirmed-commit timer goroutine and the RPC-handling
// goroutine both touch it (spec.md §5's single-committer model still
// allows a background timer to fire concurrently with session bookkeeping).
type Set struct {
	mu         sync.Mutex
	datastores map[string]*Datastore
}

// NewSet creates an empty Set seeded with the five canonical datastores.
func NewSet() *Set {
	s := &Set{datastores: make(map[string]*Datastore)}
	for _, name := range []string{Candidate, Running, Startup, Failsafe, Tmp} {
		s.datastores[name] = &Datastore{Name: name}
	}
	return s
}

// Get returns the datastore by name, creating an empty one on first
// reference (used for the rollback-commit-N family, whose names are
// generated at confirmed-commit time).
func (s *Set) Get(name string) *Datastore {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datastores[name]
	if !ok {
		ds = &Datastore{Name: name}
		s.datastores[name] = ds
	}
	return ds
}

// Remove deletes a datastore from the set (used to drop rollback snapshots
// once a confirmed commit is confirmed).
func (s *Set) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.datastores, name)
}
